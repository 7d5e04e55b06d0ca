// Package server implements the ChatVerse realtime subsystem: an
// authenticated WebSocket layer that tracks per-user presence across
// simultaneous connections, relays direct messages with
// durability-before-visibility semantics, and passes through ephemeral
// typing notifications.
//
// The implementation is organized into specialized files for the connection
// gate, hub, room directory, presence tracker, relays, client pumps,
// configuration, and HTTP handlers.
package server
