// Package cluster implements the ClusterClient component: the per-cluster
// gRPC wrapper the control plane dials to reach one federation member,
// with retry/backoff on transient failures and OpenTelemetry
// instrumentation on both the channel and the calls it carries.
package cluster
