// ABOUTME: Context-aware line and password input shared by prompts and the chat loop
// ABOUTME: One buffered reader per input stream so no typed-ahead input is lost

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

type lineResult struct {
	line string
	err  error
}

// Console reads lines from an input stream and writes prompts to an output.
// A read abandoned by context cancellation stays pending and is delivered to
// the next ReadLine, so at most one goroutine ever reads from the input.
type Console struct {
	in  *bufio.Reader
	out io.Writer

	fd  int
	tty bool

	readPassword func(fd int) ([]byte, error)
	getState     func(fd int) (*term.State, error)
	restore      func(fd int, state *term.State) error

	mu      sync.Mutex
	pending chan lineResult
}

// New creates a console over in and out. When in is a terminal, passwords
// are read without echo.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{
		in:           bufio.NewReader(in),
		out:          out,
		fd:           -1,
		readPassword: term.ReadPassword,
		getState:     term.GetState,
		restore:      term.Restore,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.fd = int(f.Fd())
		c.tty = true
	}
	return c
}

// Stdio returns a console over the process's stdin and stdout.
func Stdio() *Console {
	return New(os.Stdin, os.Stdout)
}

// Out returns the output writer.
func (c *Console) Out() io.Writer {
	return c.out
}

// IsTerminal reports whether input comes from a terminal.
func (c *Console) IsTerminal() bool {
	return c.tty
}

// Printf writes to the output.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// ReadLine prints prompt and returns the next line without its line ending.
// It returns io.EOF when input is exhausted and ctx.Err() when ctx is done first.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(c.out, prompt)
	}

	c.mu.Lock()
	if c.pending == nil {
		ch := make(chan lineResult, 1)
		c.pending = ch
		go func() {
			line, err := c.in.ReadString('\n')
			if errors.Is(err, io.EOF) && line != "" {
				err = nil
			}
			ch <- lineResult{line: strings.TrimRight(line, "\r\n"), err: err}
		}()
	}
	ch := c.pending
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		return r.line, r.err
	}
}

// ReadPassword prints prompt and reads a line without echo when input is a
// terminal. Other inputs fall back to ReadLine. When ctx ends first the
// terminal is put back in the state it had before the read, so echo is on
// again even though the abandoned read never returns.
func (c *Console) ReadPassword(ctx context.Context, prompt string) (string, error) {
	if !c.tty {
		return c.ReadLine(ctx, prompt)
	}

	state, err := c.getState(c.fd)
	if err != nil {
		state = nil
	}

	fmt.Fprint(c.out, prompt)
	ch := make(chan lineResult, 1)
	go func() {
		b, err := c.readPassword(c.fd)
		ch <- lineResult{line: string(b), err: err}
	}()

	select {
	case <-ctx.Done():
		if state != nil {
			_ = c.restore(c.fd, state)
		}
		fmt.Fprintln(c.out)
		return "", ctx.Err()
	case r := <-ch:
		fmt.Fprintln(c.out)
		return r.line, r.err
	}
}
