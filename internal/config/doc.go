// Package config provides centralized configuration management for the
// control plane's services through environment variables with sensible
// defaults, plus an optional TOML overlay for structured federation
// defaults (seed clusters, balancer policy knobs).
//
// # Quick Start
//
//	appConfig := config.Load()
//	fmt.Printf("Control plane: %s\n", appConfig.GetControlPlaneAddress())
//	fmt.Printf("Jaeger: %s\n", appConfig.JaegerEndpoint)
//
// Federation defaults, read from an optional TOML file:
//
//	defaults, err := config.LoadFederationDefaults("federation.toml")
//
// # Configuration Precedence
//
//  1. Environment variables (if set)
//  2. Default values (if not set)
//
// AppConfig is a read-only snapshot of the environment at startup; do not
// mutate it after Load() returns.
package config
