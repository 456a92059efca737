// Package auth decides whether and how the chat client authenticates.
//
// # Flow
//
// Negotiator.Authenticate walks a small state machine:
//
//	unauthenticated -> probing -> not_required
//	                           -> awaiting_choice -> authenticated
//	                                              -> failed (abort)
//
// A probe is an unauthenticated GET /api/sessions. 401 or 403 means the
// server requires a token. Any other outcome, including network errors, is
// treated as "not required" and logged. That permissive policy keeps the
// client usable against servers whose probe endpoint misbehaves.
//
// When auth is required, a stored credential is tried first. Tokens that are
// JWTs with an exp claim in the past are discarded without a request;
// otherwise GET /api/auth/me decides. Any non-200 answer invalidates the
// stored credential.
//
// # Prompters
//
// The negotiator never reads a terminal itself. Decisions come from a
// Prompter:
//
//   - TerminalPrompter: numbered menu, no-echo password entry
//   - EnvPrompter: AGENTCHAT_EMAIL / AGENTCHAT_PASSWORD / AGENTCHAT_NAME, one attempt
//   - ScriptedPrompter: fixed answers for tests
//
// # Local Validation
//
// Login and registration reject passwords shorter than MinPasswordLength,
// and registration rejects a mismatched confirmation, before any request is
// sent.
package auth
