// ABOUTME: Event-stream client that sends a user message and returns the response stream
// ABOUTME: Retries only header-phase timeouts and invalidates credentials on 401

package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/2389/agentchat/internal/api"
	"github.com/2389/agentchat/internal/retry"
)

// DefaultTimeout bounds the wait for response headers on each attempt.
const DefaultTimeout = 120 * time.Second

// Send errors
var (
	ErrAuthExpired  = errors.New("authentication expired, please restart the chat")
	ErrTimeout      = errors.New("request timed out")
	ErrSendInFlight = errors.New("a message is already in flight for this session")
)

// errHeaderTimeout is the cancel cause when the header timer fires.
var errHeaderTimeout = fmt.Errorf("waiting for response headers: %w", ErrTimeout)

// TransportError is a network-level failure of the initiating request.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("sending message failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("sending message: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, ErrTimeout)
}

// Invalidator drops the stored credential after the server rejects it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Message is one entry of the request body.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configures a Client.
type Options struct {
	// Timeout bounds the wait for response headers on each attempt. Once the
	// body starts streaming no timeout applies.
	Timeout     time.Duration
	Retry       retry.Policy
	Invalidator Invalidator
	// OnRetry is called before each retry after a timeout.
	OnRetry func(attempt, maxAttempts int)
	Logger  *slog.Logger
}

// Client sends messages to agents. At most one stream per session is open at a time.
type Client struct {
	api         *api.Client
	timeout     time.Duration
	policy      retry.Policy
	invalidator Invalidator
	onRetry     func(attempt, maxAttempts int)
	logger      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewClient creates a stream client on top of client.
func NewClient(client *api.Client, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	policy := opts.Retry
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = retry.DefaultMaxAttempts
	}
	return &Client{
		api:         client,
		timeout:     timeout,
		policy:      policy,
		invalidator: opts.Invalidator,
		onRetry:     opts.OnRetry,
		logger:      logger.With("component", "stream"),
		inFlight:    make(map[string]struct{}),
	}
}

// acquire marks sessionID busy. It returns a release func, or false when a
// stream for the session is already open.
func (c *Client) acquire(sessionID string) (func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[sessionID]; busy {
		return nil, false
	}
	c.inFlight[sessionID] = struct{}{}
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.inFlight, sessionID)
	}, true
}

// SendMessage posts a single user message to agent in the session.
func (c *Client) SendMessage(ctx context.Context, sessionID, agent, message string) (*Stream, error) {
	return c.Send(ctx, sessionID, agent, []Message{{Role: "user", Content: message}})
}

// Send posts messages and returns the open response stream. The caller must
// Close the stream. A timeout before response headers is retried up to the
// policy's attempt budget; any other failure returns immediately. A 401
// invalidates the stored credential and returns an error matching
// ErrAuthExpired.
func (c *Client) Send(ctx context.Context, sessionID, agent string, messages []Message) (*Stream, error) {
	release, ok := c.acquire(sessionID)
	if !ok {
		return nil, ErrSendInFlight
	}

	path := api.AgentStreamPath(sessionID, agent)
	log := c.logger.With("session_id", sessionID, "agent", agent)

	var (
		resp   *http.Response
		cancel context.CancelCauseFunc
	)
	attempts, err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			log.Info("request timed out, retrying", "attempt", attempt, "max_attempts", c.policy.MaxAttempts)
			if c.onRetry != nil {
				c.onRetry(attempt, c.policy.MaxAttempts)
			}
		}
		var aerr error
		resp, cancel, aerr = c.attempt(ctx, path, messages)
		return aerr
	}, func(err error) bool {
		return errors.Is(err, ErrTimeout)
	})

	if err != nil {
		release()
		return nil, c.sendError(ctx, attempts, err, log)
	}

	log.Debug("stream opened", "attempts", attempts)
	return newStream(resp, cancel, release, attempts, c.logger), nil
}

// attempt issues one request and waits for headers under the header timeout.
// On success the returned cancel func owns the response's lifetime.
func (c *Client) attempt(ctx context.Context, path string, messages []Message) (*http.Response, context.CancelCauseFunc, error) {
	actx, cancel := context.WithCancelCause(ctx)

	req, err := c.api.NewRequest(actx, http.MethodPost, path, messages, api.WithAccept("text/event-stream"))
	if err != nil {
		cancel(nil)
		return nil, nil, err
	}

	timer := time.AfterFunc(c.timeout, func() { cancel(errHeaderTimeout) })
	resp, err := c.api.Do(req)
	stopped := timer.Stop()

	if err != nil {
		cause := context.Cause(actx)
		cancel(nil)
		if errors.Is(cause, ErrTimeout) {
			return nil, nil, errHeaderTimeout
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() && ctx.Err() == nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, nil, err
	}
	if !stopped {
		// Headers arrived as the timer fired; the context is already cancelled.
		resp.Body.Close()
		cancel(nil)
		return nil, nil, errHeaderTimeout
	}

	if !api.IsSuccess(resp.StatusCode) {
		se := api.ReadStatusError(resp)
		resp.Body.Close()
		cancel(nil)
		return nil, nil, se
	}
	return resp, cancel, nil
}

func (c *Client) sendError(ctx context.Context, attempts int, err error, log *slog.Logger) error {
	var se *api.StatusError
	if errors.As(err, &se) {
		if se.Code == http.StatusUnauthorized {
			log.Warn("server rejected credentials, invalidating")
			if c.invalidator != nil {
				_ = c.invalidator.Invalidate(context.WithoutCancel(ctx))
			}
			return fmt.Errorf("%w: %w", ErrAuthExpired, se)
		}
		return se
	}

	if errors.Is(err, ErrTimeout) {
		log.Warn("request timed out", "attempts", attempts)
	}
	return &TransportError{Attempts: attempts, Err: err}
}

// Stream is a single-pass sequence of events read from one response body.
type Stream struct {
	dec      *Decoder
	resp     *http.Response
	cancel   context.CancelCauseFunc
	release  func()
	attempts int

	once sync.Once
}

func newStream(resp *http.Response, cancel context.CancelCauseFunc, release func(), attempts int, logger *slog.Logger) *Stream {
	return &Stream{
		dec:      NewDecoder(resp.Body, logger),
		resp:     resp,
		cancel:   cancel,
		release:  release,
		attempts: attempts,
	}
}

// Next advances to the next event. It returns false once the body is exhausted or fails.
func (s *Stream) Next() bool {
	return s.dec.Next()
}

// Event returns the current event.
func (s *Stream) Event() Event {
	return s.dec.Event()
}

// Err returns the error that ended the stream early, or nil when the server closed it.
func (s *Stream) Err() error {
	return s.dec.Err()
}

// Skipped returns how many events could not be decoded.
func (s *Stream) Skipped() int {
	return s.dec.Skipped()
}

// DecodeErrors returns the most recent decode failures.
func (s *Stream) DecodeErrors() []*DecodeError {
	return s.dec.DecodeErrors()
}

// Attempts returns how many requests it took to open the stream.
func (s *Stream) Attempts() int {
	return s.attempts
}

// Close aborts the response and frees the session for the next send. It is
// safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.resp.Body.Close()
		s.cancel(context.Canceled)
		s.release()
	})
	return err
}
