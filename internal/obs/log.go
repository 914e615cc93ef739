package obs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	loggerMu sync.RWMutex
	logger   = newLogger(os.Stdout, false)
)

func newLogger(w io.Writer, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Logger returns the shared structured logger used across the service.
func Logger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Configure switches to a human readable console writer and debug level when debug is set.
func Configure(debug bool) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = newLogger(os.Stdout, debug)
	if debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

// SetOutput redirects the shared logger to w as JSON lines and returns the previous logger.
func SetOutput(w io.Writer) zerolog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	prev := logger
	logger = newLogger(w, false)
	return prev
}

// Restore puts back a logger returned by SetOutput.
func Restore(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// LogRequest emits one access log line.
func LogRequest(entry map[string]any) {
	l := Logger()
	l.Info().Fields(entry).Msg("http request")
}
