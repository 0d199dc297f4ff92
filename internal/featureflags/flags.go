package featureflags

import (
	"os"
	"strings"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive).
// Flags are consulted once at startup by the hosting application; the
// engine itself takes its configuration explicitly.
func Enabled(name string) bool {
	return EnabledDefault(name, false)
}

// EnabledDefault returns the flag's value, falling back to def when the
// environment variable is unset. Used for surfaces that ship enabled
// but can be switched off per deployment.
func EnabledDefault(name string, def bool) bool {
	v, ok := os.LookupEnv("FLAG_" + strings.ToUpper(name))
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
