package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitLevels(t *testing.T) {
	Init(Config{Debug: true})
	if got := log.Logger.GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("level = %v, want debug", got)
	}

	Init()
	if got := log.Logger.GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", got)
	}
}

func TestLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		conf Config
		want zerolog.Level
	}{
		{name: "default", conf: Config{}, want: zerolog.InfoLevel},
		{name: "debug flag", conf: Config{Debug: true}, want: zerolog.DebugLevel},
		{name: "explicit wins", conf: Config{Debug: true, Level: "WARN"}, want: zerolog.WarnLevel},
		{name: "unknown", conf: Config{Level: "loud"}, want: zerolog.InfoLevel},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := level(&tc.conf); got != tc.want {
				t.Fatalf("level() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewWritesServiceField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Service: "pulse-test"})
	logger.Info().Str("pulse_id", "p1").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["service"] != "pulse-test" || line["pulse_id"] != "p1" || line["message"] != "hello" {
		t.Fatalf("unexpected log line %v", line)
	}
	if _, ok := line["caller"]; !ok {
		t.Fatalf("caller missing from %v", line)
	}
}
