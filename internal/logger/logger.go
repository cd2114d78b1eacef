package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Log is usable before Init; it discards everything until then.
var Log = slog.New(slog.NewTextHandler(io.Discard, nil))

var logFile *os.File

func Init(logFilePath string, verbose bool) error {
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	logFile = file

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	Log = New(io.MultiWriter(os.Stderr, file), level)
	Log.Info("Logger initialized.", "file", logFilePath)
	return nil
}

// New builds the tint-backed handler used across the binary.
func New(output io.Writer, level slog.Level) *slog.Logger {
	handler := tint.NewHandler(output, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    output != os.Stderr,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}

// OrDefault lets constructors accept a nil logger.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Log
	}
	return l
}

func Close() error {
	if logFile == nil {
		return nil
	}
	return logFile.Close()
}
