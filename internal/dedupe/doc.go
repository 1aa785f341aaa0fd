// Package dedupe provides message deduplication using a time-based cache
// so a redelivered inbound message is relayed to the webhook at most once.
package dedupe
