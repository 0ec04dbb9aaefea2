// Package server provides the HTTP monitoring and query API.
//
// Endpoints:
//   - GET /health: liveness and component summary
//   - GET /stats: pipeline, queue, VAD, transcription and source statistics
//   - GET /config: effective configuration without secrets
//   - GET /utterances: recent dispatch outcomes
//   - POST /query: run a statement through the read-only gate
//   - GET /audio: websocket audio ingress, when that source is selected
//   - GET /metrics: Prometheus metrics
package server
