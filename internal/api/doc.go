// Package api implements the dashboard HTTP API and WebSocket feed.
//
// This package provides:
//   - Read endpoints for devices, the state report and the snapshot journal
//   - Manual controls: on/off/toggle, attribute setters, motion detection
//   - On-demand randomization and simulation passes
//   - WebSocket hub with per-change, per-device and per-pass channels
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, JWT)
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/metrics
//	GET  /api/v1/report[?format=text]
//	GET  /api/v1/devices
//	GET  /api/v1/devices/{id}
//	GET  /api/v1/devices/{id}/history[?limit=n]
//	POST /api/v1/devices/{id}/on | off | toggle | detect-motion | randomize
//	PUT  /api/v1/devices/{id}/brightness | temperature | security-status
//	POST /api/v1/simulate
//	GET  /api/v1/ws
//
// # Security
//
// With security.jwt.secret set, mutating routes require an HS256 bearer
// token. Reads and the WebSocket feed stay open.
//
// # Errors
//
// Errors are JSON {status, code, message}. Invalid values are 400
// validation_error, operations a device kind does not support are 400
// bad_request and unknown devices are 404.
package api
