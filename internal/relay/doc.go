// Package relay forwards normalized inbound messages to the configured
// external webhook and extracts the optional reply instruction from the
// response. Failures at this boundary are returned to the caller to log and
// deliberately not propagated further: one unreachable webhook must never
// stall the session that produced the message.
package relay
