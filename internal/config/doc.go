// Package config loads, normalizes, and validates transcoderctl configuration.
//
// It resolves the TOML file location (explicit path, ~/.config/transcoderctl,
// or ./transcoderctl.toml), merges values onto repository defaults, expands
// user-relative paths, applies environment overrides for the backend URL and
// API token, and validates the result before any command talks to the
// backend. The embedded sample config backs `transcoderctl config init`.
//
// Add new settings here first, then thread them into the packages that need
// them, so every command shares one resolution path.
package config
