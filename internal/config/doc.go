// Package config handles configuration loading for agentchat.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Every field has a default, so a missing file is not an error
// when using LoadOrDefault.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from AGENTCHAT_CONFIG environment variable
//  2. ~/.config/agentchat/config.yaml
//
// A .env file in the working directory is loaded first (see LoadDotEnv), so
// its variables are available to ${VAR} expansion.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// AGENTCHAT_URL overrides server.url after the file is parsed.
//
// # Configuration Sections
//
//	server:
//	  url: "https://agents.example.com"
//
//	auth:
//	  credentials_file: "~/.cagent_auth.json"
//	  skip: false
//
//	timeouts:
//	  message: "120s"    # until response headers of a message send
//	  auxiliary: "10s"   # login, agents, sessions
//	  probe: "5s"        # auth detection
//
//	stream:
//	  max_retries: 3     # total attempts on header timeout
//	  retry_delay: "0s"
//	  retry_jitter: 0
//
//	session:
//	  working_dir: "/tmp"
//	  tools_approved: true
//
//	history:
//	  enabled: true
//	  path: "~/.local/share/agentchat/history.db"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	tailscale:
//	  enabled: false
//	  hostname: "agentchat"
//	  auth_key: "${TS_AUTHKEY}"
//	  ephemeral: true
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(config.DefaultConfigPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
