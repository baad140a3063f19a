// Package config loads, normalizes, and validates vidmerge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PORT and S3_BUCKET_NAME. The Config type centralizes every knob the server
// and CLI need so staging, store and encoder settings are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
