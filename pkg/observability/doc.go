// Package observability provides structured logging, Prometheus metrics,
// health endpoints, and graceful shutdown coordination for the cookbook
// service.
package observability
