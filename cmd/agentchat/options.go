// ABOUTME: Command-line parsing for agentchat
// ABOUTME: Maps flags and positionals onto options that override the loaded config

package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/2389/agentchat/internal/config"
)

// options holds everything the command line can set.
type options struct {
	configPath string
	serverURL  string
	timeout    int
	verbose    bool
	noAuth     bool
	logout     bool
	register   bool
	list       bool
	noColor    bool

	agent  string
	prompt string
}

const usageText = `Usage: agentchat [flags] <agent> [prompt...]

Chat with an agent on an agent server. The agent name may omit ".yaml".

Flags:
`

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("agentchat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "Config file (default "+config.DefaultConfigPath()+")")
	fs.StringVar(&opts.serverURL, "url", "", "Agent server URL (overrides config and "+config.EnvServerURL+")")
	fs.IntVar(&opts.timeout, "timeout", 0, "Seconds to wait for a reply to start (default from config, 120)")
	fs.IntVar(&opts.timeout, "t", 0, "Shorthand for --timeout")
	fs.BoolVar(&opts.verbose, "verbose", false, "Show tool arguments, shell output and debug logs")
	fs.BoolVar(&opts.verbose, "v", false, "Shorthand for --verbose")
	fs.BoolVar(&opts.noAuth, "no-auth", false, "Skip authentication")
	fs.BoolVar(&opts.logout, "logout", false, "Remove saved credentials for the server and exit")
	fs.BoolVar(&opts.register, "register", false, "Register a new account and exit")
	fs.BoolVar(&opts.list, "list", false, "List available agents and exit")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	positionals, err := parseInterspersed(fs, args)
	if err != nil {
		return nil, err
	}
	if opts.timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %d", opts.timeout)
	}

	if len(positionals) > 0 {
		opts.agent = positionals[0]
		opts.prompt = strings.TrimSpace(strings.Join(positionals[1:], " "))
	}
	return opts, nil
}

// parseInterspersed parses flags anywhere on the command line, so
// "agentchat pirate --timeout 300" works. Everything after "--" is positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var tail []string
	for i, a := range args {
		if a == "--" {
			args, tail = args[:i], args[i+1:]
			break
		}
	}

	var positionals []string
	for {
		if err := fs.Parse(args); err != nil {
			// The flag set has already printed the error and usage.
			return nil, reported{err}
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positionals = append(positionals, args[0])
		args = args[1:]
	}
	return append(positionals, tail...), nil
}

// apply overlays command-line values on cfg.
func (o *options) apply(cfg *config.Config) error {
	if o.serverURL != "" {
		cfg.Server.URL = strings.TrimRight(o.serverURL, "/")
	}
	if o.timeout > 0 {
		cfg.Timeouts.Message = time.Duration(o.timeout) * time.Second
	}
	if o.noAuth {
		cfg.Auth.Skip = true
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg.Validate()
}
