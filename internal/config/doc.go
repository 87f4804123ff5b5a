// Package config provides configuration management for the respondkit server.
// It loads configuration from multiple sources, validates it, and exposes a
// typed API that the rest of the application consumes at startup.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file
//	3. Default values (lowest priority)
//
// The YAML file is taken from RESPONDKIT_CONFIG_FILE when set, otherwise
// from config.yaml or configs/config.yaml in the working directory.
//
// # Environment Variables
//
// All environment variables follow the pattern RESPONDKIT_<SECTION>_<FIELD>:
//
//	RESPONDKIT_SERVER_PORT=8080
//	RESPONDKIT_LOGGING_LEVEL=debug
//	RESPONDKIT_ENVELOPE_TIME_FORMAT=RFC3339
//	RESPONDKIT_RATE_LIMIT_ENABLED=true
//
// # Envelope Serialization
//
// The envelope section decides the timestamp layout and JSON encoding of
// every response for the life of the process:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	serializer := cfg.Envelope.Serializer()
//
// # Testing
//
// Default returns a complete configuration that needs no environment
// variables or files.
package config
