// Package config handles configuration loading for replybot.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation; zero-value timing fields fall back to the
// production defaults chosen by their consumers.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${REPLYBOT_DB_PATH}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  lock_ttl: "5s"
//	  retry_interval: "20ms"
//	  max_message_age: "60s"
//	  claim_ttl: "60s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Database:
//
//	database:
//	  path: "/var/lib/replybot/replybot.db"
//
// Bot identity:
//
//	bot:
//	  id: "B024BE7LH"
//	  name: "replybot"
//	  team_id: "T024BE7LD"
//	  team_name: "example"
//
// Flow supervision:
//
//	flows:
//	  typing_interval: "2500ms"
//	  timeout: "15s"
//
// Search:
//
//	search:
//	  size: 26
//	  retries: 3
//	  initial_timeout: "500ms"
//	  retry_step: "1500ms"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/replybot/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
