// Package config loads the TOML configuration for the pbcore tools.
//
// Load applies defaults, decodes the file, normalizes values (trimming,
// lower-casing, expanding ~ in paths) and validates the result.
package config
