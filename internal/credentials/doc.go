// Package credentials persists bearer tokens and user profiles per server.
//
// # Overview
//
// The credential document is a single JSON object keyed by server URL:
//
//	{
//	  "https://agents.example.com": {
//	    "token": "eyJhbGciOi...",
//	    "user": {"id": "...", "email": "...", "name": "...", "is_admin": false},
//	    "saved_at": "2025-06-01T12:00:00Z"
//	  }
//	}
//
// FileStore holds an exclusive flock on "<path>.lock" for every
// read-modify-write and replaces the document with an atomic rename, so two
// clients saving at once never lose each other's entries. The file is always
// left with mode 0600.
//
// MemoryStore has the same semantics and is used in tests.
package credentials
