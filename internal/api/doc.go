// Package api hosts the HTTP server, middleware, and REST handlers for the
// harpoon engine. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/cycles to run a cycle, GET /v1/cycles/{cycle_id} to read one
//     back through the configured cycle store.
//   - POST /v1/jobs to queue a cycle in the background, GET /v1/jobs/{job_id}
//     to poll it.
//   - POST /v1/hash, /v1/fingerprint and /v1/score for single bodies.
//   - GET /v1/engine and /v1/stats for the engine shape and cumulative counters.
package api
