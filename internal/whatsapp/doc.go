// Package whatsapp adapts the whatsmeow protocol engine to the
// session.Client capability. Each session owns one client backed by its own
// sqlite credential database, so pairing survives restarts. Lifecycle
// events (QR codes, connection, inbound messages, disconnects) are
// translated into the session package's typed event stream.
package whatsapp
