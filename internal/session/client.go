// ABOUTME: Client capability interface for the underlying messaging protocol engine.
// ABOUTME: Defines the typed lifecycle event stream and the inbound message envelope.

package session

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// JID suffixes used by the underlying addressing scheme.
const (
	// DirectChatSuffix is the server part of a one-on-one chat address.
	DirectChatSuffix = "@s.whatsapp.net"

	// GroupChatSuffix is the server part of a group chat address.
	GroupChatSuffix = "@g.us"
)

// EventKind identifies the type of a lifecycle event emitted by a Client.
type EventKind int

const (
	// EventQR carries a fresh pairing challenge. May be emitted repeatedly
	// while the session awaits authentication; each code replaces the last.
	EventQR EventKind = iota

	// EventReady signals that authentication completed and the session is
	// connected under the given account handle.
	EventReady

	// EventMessage carries one inbound message envelope.
	EventMessage

	// EventDisconnected signals that the connection is gone for good. The
	// client emits it at most once; no further events follow.
	EventDisconnected
)

// Event is one lifecycle event delivered on the channel returned by
// Client.Initialize. Exactly one payload field is set per kind.
type Event struct {
	Kind          EventKind
	Code          string          // EventQR: raw challenge string
	AccountHandle string          // EventReady: connected phone number
	Reason        string          // EventDisconnected: human-readable cause
	Message       *InboundMessage // EventMessage
}

// InboundMessage is the transient envelope the underlying client produces
// for each received message. It is consumed exactly once by the classifier.
type InboundMessage struct {
	ID        string
	SenderID  string // full JID of the sender
	ChatID    string // full JID of the chat the message arrived in
	RawType   string // "text", "audio", "image", ...
	Text      string
	Media     any // client-specific handle for media download, nil for text
	Timestamp time.Time
}

// Client is the opaque capability that implements the actual messaging
// protocol. Each Session owns exactly one Client; it is created once at
// session construction and destroyed exactly once at termination.
type Client interface {
	// Initialize starts the connection and returns the lifecycle event
	// stream. The channel is closed after EventDisconnected or when ctx is
	// cancelled. A synchronous error means the client never came up.
	Initialize(ctx context.Context) (<-chan Event, error)

	// SendText delivers a text message to the given full JID.
	SendText(ctx context.Context, recipient, text string) error

	// DownloadMedia fetches the media payload referenced by the envelope,
	// returning the raw bytes and MIME type.
	DownloadMedia(ctx context.Context, msg *InboundMessage) ([]byte, string, error)

	// Destroy tears down the connection. Credentials persist on disk so a
	// later session with the same ID reconnects without re-pairing.
	Destroy(ctx context.Context) error
}

// ClientFactory constructs the underlying client for a session ID. The ID
// doubles as the credential-store identifier.
type ClientFactory func(id string, logger *slog.Logger) (Client, error)

// NormalizeRecipient converts a caller-supplied phone number into a direct
// chat JID: all non-digits are stripped and the direct-chat suffix appended.
// "+55 11 98888-7777" becomes "5511988887777@s.whatsapp.net".
func NormalizeRecipient(to string) string {
	var b strings.Builder
	for _, r := range to {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String() + DirectChatSuffix
}
