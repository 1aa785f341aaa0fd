// Package session implements the core of the gateway: the per-connection
// state machine and the registry that manages every active session.
//
// # Lifecycle
//
// A session moves through four states:
//
//	Uninitialized -> AwaitingAuth -> Ready
//	                (any state)   -> Terminated
//
// Uninitialized begins when Start constructs the session and kicks off
// asynchronous client initialization. A pairing challenge moves it to
// AwaitingAuth (reissued challenges replace the cached one); successful
// authentication moves it to Ready. Terminated is terminal and is reached
// by an explicit Destroy, a disconnect event from the underlying client, or
// an initialization failure - all three run the same teardown path, and a
// terminated session is evicted from the registry atomically, so observers
// never see a terminated entry. A later Start for the same ID builds a
// brand-new session.
//
// The cached challenge and the connected identity are never both populated.
//
// # Message pipeline
//
// Inbound messages flow dedupe -> classify -> relay -> optional reply. Each
// message is processed in its own goroutine: relay calls for two messages of
// the same session may be in flight concurrently and their replies may
// resolve out of order. Webhook, media, and reply failures are logged and
// swallowed; they never reach the session's event loop or its callers.
//
// # Underlying client
//
// The messaging protocol engine is abstracted behind the Client interface,
// which delivers typed lifecycle events on a channel consumed by one
// goroutine per session. Production code plugs in the whatsmeow-backed
// implementation from internal/whatsapp; tests substitute in-process fakes.
package session
