package config

import (
	"os"
	"strings"
)

// EnvironmentExpander provides functionality to expand environment variable placeholders
// within an input byte slice.
type EnvironmentExpander interface {
	// Expand takes a byte slice as input, expands any environment variable placeholders
	// (e.g., ${VAR} or $VAR) within it, and returns the expanded byte slice.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander expands placeholders from the process environment.
// Unset variables expand to the empty string, or to the fallback of a ${VAR:-fallback} placeholder.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates and returns a new instance of OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand implements EnvironmentExpander. It never returns an error.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.Expand(string(input), withDefault(os.Getenv))), nil
}

// MapEnvironmentExpander expands placeholders from a fixed map. Useful in tests.
type MapEnvironmentExpander map[string]string

// Expand implements EnvironmentExpander.
func (m MapEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.Expand(string(input), withDefault(func(key string) string { return m[key] }))), nil
}

// withDefault wraps lookup so that "NAME:-fallback" yields fallback when NAME is empty.
func withDefault(lookup func(string) string) func(string) string {
	return func(name string) string {
		key, fallback, ok := strings.Cut(name, ":-")
		if v := lookup(key); v != "" || !ok {
			return v
		}
		return fallback
	}
}
