// Package api hosts the ops HTTP server, middleware, and handlers. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/topics for the watchlist with storage keys.
//   - GET /v1/cycles/last for the most recent cycle report.
//   - POST /v1/cycles to start a cycle now.
package api
