// Package config loads the watcher configuration.
//
// A Config is assembled once at startup from built-in defaults, an optional
// TOML file, and FACEWATCH_* environment variables, then validated and passed
// by value to the components that need it.
package config
