// Package config owns the on-disk TOML shapes for the race server and
// terminal client: strict loading, conversion to runtime config, and
// default templates.
package config
