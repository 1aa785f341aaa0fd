// Package gateway is the thin HTTP adapter over the session manager.
//
// # Routes
//
//   - POST   /session/{id}/start  - create or return the session (idempotent)
//   - GET    /session/{id}/status - {ready, hasQrCode, connectedNumber}
//   - GET    /session/{id}/qr     - pairing challenge as an inline data URI
//   - POST   /session/{id}/send   - send a text message ({to, message})
//   - GET    /sessions            - snapshot of all sessions
//   - DELETE /session/{id}        - destroy the session (idempotent)
//   - GET    /healthz, /readyz    - liveness and readiness checks
//
// The adapter holds no state of its own: every handler maps one request to
// one manager operation and renders the result. Callers always receive a
// definite response; only NotFound, NotConnected, and delivery failures are
// surfaced, per the manager's propagation policy.
package gateway
