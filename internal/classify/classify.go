// ABOUTME: Classifies inbound message envelopes into normalized relay events.
// ABOUTME: Filters group traffic and resolves audio messages with a text fallback.

package classify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/wagateway/internal/relay"
)

// AudioFallbackText is relayed in place of an audio message whose payload
// could not be fetched. A failed download demotes the message to text; it
// never drops it.
const AudioFallbackText = "[audio message could not be processed]"

// Raw message types recognized by the classifier. Anything else is treated
// as text.
const (
	RawTypeText  = "text"
	RawTypeAudio = "audio"
)

// JID suffixes of the underlying addressing scheme.
const (
	directChatSuffix = "@s.whatsapp.net"
	groupChatSuffix  = "@g.us"
)

// Input is the classifier's view of one inbound envelope.
type Input struct {
	SenderID  string
	ChatID    string
	RawType   string
	Text      string
	Timestamp time.Time

	// FetchMedia downloads the media payload for audio messages, returning
	// the raw bytes and MIME type. It may block on network I/O and may fail.
	FetchMedia func(ctx context.Context) ([]byte, string, error)
}

// Classify produces the normalized relay event for one envelope. The second
// return value is false when the message must not be relayed at all, which
// happens only for group-chat traffic - a hard filter, not configurable.
func Classify(ctx context.Context, in Input, logger *slog.Logger) (*relay.Event, bool) {
	if isGroup(in.SenderID) || isGroup(in.ChatID) {
		logger.Debug("group message dropped", "chat", in.ChatID)
		return nil, false
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ev := &relay.Event{
		From:      normalizeSender(in.SenderID),
		Timestamp: ts.UTC().Format(time.RFC3339),
	}

	if in.RawType == RawTypeAudio {
		data, mime, err := fetchMedia(ctx, in)
		if err != nil || len(data) == 0 {
			if err != nil {
				logger.Warn("audio download failed, relaying fallback text", "error", err)
			} else {
				logger.Warn("audio message had empty payload, relaying fallback text")
			}
			ev.Type = RawTypeText
			ev.Message = AudioFallbackText
			return ev, true
		}
		ev.Type = RawTypeAudio
		ev.Audio = data
		ev.MimeType = mime
		return ev, true
	}

	ev.Type = RawTypeText
	ev.Message = in.Text
	return ev, true
}

// fetchMedia guards against envelopes with no fetcher attached.
func fetchMedia(ctx context.Context, in Input) ([]byte, string, error) {
	if in.FetchMedia == nil {
		return nil, "", nil
	}
	return in.FetchMedia(ctx)
}

// normalizeSender strips the direct-chat suffix and any :device part of an
// AD-form JID, leaving the bare number.
func normalizeSender(jid string) string {
	s := strings.TrimSuffix(jid, directChatSuffix)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}

// isGroup reports whether a JID uses the group-addressing scheme.
func isGroup(jid string) bool {
	return strings.HasSuffix(jid, groupChatSuffix)
}
