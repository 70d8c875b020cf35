package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Level        string `split_words:"true"`
	Service      string `split_words:"true" default:"pulse-agent"`
}

var DefaultConfig = &Config{
	Service: "pulse-agent",
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init installs the global logger on stdout.
func Init(opts ...Config) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	log.Logger = New(os.Stdout, opts...)
}

// New builds a logger writing to w. An explicit Level wins over Debug; an
// unknown level falls back to info.
func New(w io.Writer, opts ...Config) zerolog.Logger {
	conf := safe(opts...)

	if conf.PrettyFormat {
		w = zerolog.ConsoleWriter{Out: w}
	}

	ctx := zerolog.New(w).With().Timestamp()
	if conf.Service != "" {
		ctx = ctx.Str("service", conf.Service)
	}
	return ctx.Logger().Level(level(conf)).With().Caller().Stack().Logger()
}

func level(conf *Config) zerolog.Level {
	if raw := strings.TrimSpace(conf.Level); raw != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil && lvl != zerolog.NoLevel {
			return lvl
		}
		return zerolog.InfoLevel
	}
	if conf.Debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
