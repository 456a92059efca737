// Package history keeps a local transcript of chat sessions in SQLite.
//
// The server owns the authoritative session; this store is a convenience
// record so past turns can be reviewed offline. Each remote session is keyed
// by (server URL, session id) and gets a local UUID. Entries are user
// messages, finalized assistant replies with their token usage, and agent
// errors, returned in insertion order.
//
// # Schema
//
//	sessions(id, server_url, session_id, agent, title, created_at)
//	entries(id, session_ref -> sessions.id, role, content,
//	        input_tokens, output_tokens, cost, created_at)
package history
