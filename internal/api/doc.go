// Package api hosts the optional status server of a crawl run. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the scheduler's progress snapshot.
package api
