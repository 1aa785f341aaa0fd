// ABOUTME: whatsmeow-backed implementation of the session.Client capability.
// ABOUTME: Bridges device store, QR pairing, event stream, sends, and media download.

package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	wm "go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/2389/wagateway/internal/session"
)

// eventBuffer is the size of the lifecycle event channel handed to the
// session manager.
const eventBuffer = 16

// Options configures the whatsmeow client factory.
type Options struct {
	// StoreDir holds one credential database per session ID.
	StoreDir string

	// QRTerminal additionally renders pairing challenges to stdout, for
	// headless pairing straight from the server log.
	QRTerminal bool

	// SendRate and SendBurst bound outbound sends per session.
	SendRate  float64
	SendBurst int
}

// Client drives one whatsmeow connection for one session.
type Client struct {
	id      string
	wa      *wm.Client
	store   *sqlstore.Container
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter

	ctx    context.Context
	events chan session.Event
}

// NewFactory returns a session.ClientFactory producing whatsmeow clients.
// Each session gets its own sqlite credential database under StoreDir, so
// credentials survive restarts and a restarted session reconnects without
// re-pairing.
func NewFactory(opts Options, logger *slog.Logger) session.ClientFactory {
	return func(id string, sessionLogger *slog.Logger) (session.Client, error) {
		if err := os.MkdirAll(opts.StoreDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}

		isTTY := term.IsTerminal(int(os.Stdout.Fd()))
		dbPath := filepath.Join(opts.StoreDir, id+".db")
		container, err := sqlstore.New(context.Background(), "sqlite3",
			"file:"+dbPath+"?_foreign_keys=on", waLog.Stdout("Database", "WARN", isTTY))
		if err != nil {
			return nil, fmt.Errorf("opening credential store: %w", err)
		}

		device, err := container.GetFirstDevice(context.Background())
		if errors.Is(err, sql.ErrNoRows) {
			device = container.NewDevice()
		} else if err != nil {
			return nil, fmt.Errorf("loading device: %w", err)
		}

		burst := opts.SendBurst
		if burst < 1 {
			burst = 1
		}
		return &Client{
			id:      id,
			wa:      wm.NewClient(device, waLog.Stdout("Client/"+id, "WARN", isTTY)),
			store:   container,
			opts:    opts,
			logger:  sessionLogger,
			limiter: rate.NewLimiter(rate.Limit(opts.SendRate), burst),
		}, nil
	}
}

// Initialize connects to WhatsApp and returns the lifecycle event stream.
// Unpaired devices go through the QR channel first; each reissued code is
// forwarded as a fresh challenge event.
func (c *Client) Initialize(ctx context.Context) (<-chan session.Event, error) {
	c.ctx = ctx
	c.events = make(chan session.Event, eventBuffer)
	c.wa.AddEventHandler(c.handleEvent)

	if c.wa.Store.ID == nil {
		qrChan, err := c.wa.GetQRChannel(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening QR channel: %w", err)
		}
		if err := c.wa.Connect(); err != nil {
			return nil, fmt.Errorf("connecting: %w", err)
		}
		go c.pumpQR(qrChan)
		return c.events, nil
	}

	if err := c.wa.Connect(); err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	return c.events, nil
}

// pumpQR forwards pairing codes from whatsmeow's QR channel as challenge
// events until pairing succeeds or times out.
func (c *Client) pumpQR(qrChan <-chan wm.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			if c.opts.QRTerminal {
				qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			}
			c.emit(session.Event{Kind: session.EventQR, Code: item.Code})
		case "success":
			return
		case "timeout":
			c.emit(session.Event{Kind: session.EventDisconnected, Reason: "pairing timeout"})
			return
		}
	}
}

// handleEvent translates whatsmeow events into session lifecycle events.
func (c *Client) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Connected:
		handle := ""
		if c.wa.Store.ID != nil {
			handle = c.wa.Store.ID.User
		}
		c.emit(session.Event{Kind: session.EventReady, AccountHandle: handle})

	case *events.Disconnected:
		c.emit(session.Event{Kind: session.EventDisconnected, Reason: "connection lost"})

	case *events.LoggedOut:
		c.emit(session.Event{Kind: session.EventDisconnected, Reason: "logged out"})

	case *events.StreamReplaced:
		c.emit(session.Event{Kind: session.EventDisconnected, Reason: "stream replaced"})

	case *events.Message:
		c.handleMessage(v)
	}
}

// handleMessage converts one protocol message into an inbound envelope.
func (c *Client) handleMessage(v *events.Message) {
	if v.Info.IsFromMe {
		return
	}
	msg := v.Message
	if msg == nil {
		return
	}

	// Multi-device phones send from an AD-form JID (user:device@server);
	// the envelope carries the bare user so consumers see only the number.
	im := &session.InboundMessage{
		ID:        v.Info.ID,
		SenderID:  v.Info.Sender.ToNonAD().String(),
		ChatID:    v.Info.Chat.String(),
		Timestamp: v.Info.Timestamp,
	}

	if au := msg.GetAudioMessage(); au != nil {
		im.RawType = "audio"
		im.Media = au
	} else {
		im.RawType = "text"
		switch {
		case msg.GetExtendedTextMessage().GetText() != "":
			im.Text = msg.GetExtendedTextMessage().GetText()
		case msg.GetConversation() != "":
			im.Text = msg.GetConversation()
		case msg.GetImageMessage().GetCaption() != "":
			im.Text = msg.GetImageMessage().GetCaption()
		case msg.GetVideoMessage().GetCaption() != "":
			im.Text = msg.GetVideoMessage().GetCaption()
		}
	}

	c.emit(session.Event{Kind: session.EventMessage, Message: im})
}

// emit delivers one event unless the session's event loop is already gone.
func (c *Client) emit(ev session.Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// SendText delivers a text message to the given JID, honoring the
// per-session rate limit.
func (c *Client) SendText(ctx context.Context, recipient, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	jid, err := types.ParseJID(recipient)
	if err != nil {
		return fmt.Errorf("parsing recipient %q: %w", recipient, err)
	}

	msg := &waProto.Message{Conversation: proto.String(text)}
	if _, err := c.wa.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("sending to %s: %w", jid, err)
	}
	return nil
}

// DownloadMedia fetches the encrypted media payload referenced by an audio
// envelope and returns the decrypted bytes with their MIME type.
func (c *Client) DownloadMedia(ctx context.Context, msg *session.InboundMessage) ([]byte, string, error) {
	au, ok := msg.Media.(*waProto.AudioMessage)
	if !ok || au == nil {
		return nil, "", fmt.Errorf("envelope %s carries no downloadable media", msg.ID)
	}

	data, err := c.wa.Download(ctx, au)
	if err != nil {
		return nil, "", fmt.Errorf("downloading media: %w", err)
	}
	return data, au.GetMimetype(), nil
}

// Destroy disconnects and releases the credential store. The credentials
// themselves stay on disk. Bounded by ctx: a hung disconnect is abandoned
// so eviction can complete.
func (c *Client) Destroy(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wa.Disconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("disconnect timed out: %w", ctx.Err())
	}

	if err := c.store.Close(); err != nil {
		return fmt.Errorf("closing credential store: %w", err)
	}
	return nil
}
