// Package driving provides interfaces for application entry points
// (primary/inbound ports). CLI and MCP adapters call the core through
// these interfaces.
package driving
