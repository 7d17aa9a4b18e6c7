package rtmp

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevel selects the verbosity of the transport's diagnostic logging.
type LogLevel int

const (
	LogCrit LogLevel = iota
	LogError
	LogWarning
	LogInfo
	LogDebug
	LogDebug2
	LogAll
)

var logLevelNames = []string{"crit", "error", "warning", "info", "debug", "debug2", "all"}

func (l LogLevel) String() string {
	if l < LogCrit || l > LogAll {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return logLevelNames[l]
}

// ParseLogLevel accepts a level name or its number.
func ParseLogLevel(s string) (LogLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range logLevelNames {
		if s == name || s == fmt.Sprint(i) {
			return LogLevel(i), nil
		}
	}
	if s == "warn" {
		return LogWarning, nil
	}
	return LogError, fmt.Errorf("rtmp: unknown log level %q", s)
}

func (l LogLevel) zerologLevel() zerolog.Level {
	switch {
	case l <= LogCrit:
		return zerolog.FatalLevel
	case l == LogError:
		return zerolog.ErrorLevel
	case l == LogWarning:
		return zerolog.WarnLevel
	case l == LogInfo:
		return zerolog.InfoLevel
	case l == LogDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
