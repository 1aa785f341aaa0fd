// Package classify normalizes inbound message envelopes: it drops group
// traffic, resolves voice messages to an audio payload (with a fixed text
// fallback when the download fails), and strips the protocol suffix from
// sender addresses. Envelopes pass through in delivery order; the classifier
// itself never reorders or buffers.
package classify
