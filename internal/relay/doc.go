// Package relay provides the WebSocket plumbing used by relay sessions.
//
// # Core Types
//
// Conn is one side of a relayed WebSocket. It reads and writes whole
// messages, forwards control frames, and closes with an explicit code and
// reason. Conns returned by Upgrade and Dialer wrap gorilla/websocket
// connections; NewMemoryPair returns two in-memory Conns wired to each other
// for deterministic tests.
//
// Dialer opens the upstream side. It offers the client's subprotocols and
// forwards the client's handshake headers, minus the ones the WebSocket
// handshake itself owns.
//
// # Messages
//
// ErrorMessage builds the structured error notification sent to clients:
//
//	{"error":{"message":"Connection to upstream timed out"}}
//
// Preview renders a short, log-safe form of a relayed message.
package relay
