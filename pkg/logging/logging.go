// Package logging owns the global zerolog logger. Component loggers created
// at package init share one switchable output, so Setup can change the format
// after they exist.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

var output = &switchWriter{w: os.Stderr}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Component 返回带 component 字段的子日志
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Setup applies the level and output format. format is "console", "json",
// or empty to pick console on a terminal and JSON otherwise.
func Setup(level, format string, verbose bool) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	SetOutput(os.Stderr, format)
	return nil
}

// SetOutput 切换所有日志的输出位置
func SetOutput(w io.Writer, format string) {
	console := format == "console"
	if format == "" {
		if f, ok := w.(*os.File); ok {
			console = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}

	if console {
		output.set(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
		return
	}
	output.set(w)
}
