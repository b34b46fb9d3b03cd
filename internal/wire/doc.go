// Package wire defines the federation wire protocol shared by every
// cluster client and cluster-side server: the message shapes of §6 of the
// control-plane contract (SpawnAgent, KillAgent, ExecuteCommand,
// GetAgentStatus, ListAgents, Heartbeat, StreamEvents, ExportAgent,
// ImportAgent), the gRPC service descriptor that binds them, and the typed
// error taxonomy every method surfaces.
//
// Message types are plain Go structs with protoc-style GetXxx() accessors
// (nil-safe getters, matching the call-site idiom of a generated protobuf
// message) carried over google.golang.org/grpc using a JSON
// encoding.Codec registered under the conventional "proto" name — see
// codec.go and DESIGN.md for why.
package wire
