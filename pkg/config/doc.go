// Package config loads gateway configuration from REPORTGATE_* environment
// variables and validates it at startup.
package config
