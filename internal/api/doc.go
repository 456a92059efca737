// Package api is the HTTP layer between agentchat and the agent server.
//
// # Overview
//
// A Client carries the server base URL and the current bearer token. Every
// request gets a fresh X-Request-ID. JSON helpers turn non-2xx responses into
// *StatusError values carrying the server's message, so higher layers can
// match on status codes with HasStatus.
//
// Timeouts are not set on the *http.Client; callers bound each request with
// a context so that a streaming response can outlive its connect phase.
//
// # Tailscale
//
// When the server is only reachable on a tailnet, StartTailnet brings up an
// embedded tsnet node and its HTTPClient is passed to New via WithHTTPClient.
package api
