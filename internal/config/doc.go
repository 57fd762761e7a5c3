// Package config loads, normalizes, and validates csheet configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the CSHEET_MEDIA_DIR environment
// fallback. The Config type centralizes every knob the server, the viewer
// session, and the CLI need so the media folder, cache locations, and viewer
// throttling limits are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
