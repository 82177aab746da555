package utils

import (
	"strings"

	"github.com/rs/zerolog"
)

// LogWriterCtx forwards subprocess output to a zerolog logger, one
// entry per line.
type LogWriterCtx struct {
	logger zerolog.Logger
}

func LogWriter(l zerolog.Logger) *LogWriterCtx {
	return &LogWriterCtx{
		logger: l,
	}
}

func (l LogWriterCtx) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			l.logger.Warn().Msg(line)
		}
	}
	return len(p), nil
}
