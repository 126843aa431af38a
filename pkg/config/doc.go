// Package config loads application configuration from COOKBOOK_* environment
// variables with sensible defaults and validates the result.
package config
