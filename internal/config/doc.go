// Package config loads and validates the wagateway YAML configuration.
//
// Configuration files support ${VAR_NAME} environment variable expansion
// and duration strings ("30s", "5m") for time-valued fields. PORT and
// WEBHOOK_URL environment variables override their config-file counterparts
// for compatibility with the original deployment contract.
package config
