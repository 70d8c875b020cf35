// Package config decodes prefix-scoped environment variables into typed
// settings, optionally seeding the environment from a dotenv file first.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvFileVar points at the dotenv file when no -env flag is given.
const EnvFileVar = "PULSE_ENV_FILE"

var (
	envFilePath string
	parseOnce   sync.Once

	exportMu sync.Mutex
	exported = map[string]bool{}
)

func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

// New loads the dotenv file once per path and then decodes variables under
// prefix into T. Values already set in the process environment win over the
// file.
func New[T any](prefix string) (*T, error) {
	if err := Load(resolveEnvPath()); err != nil {
		return nil, err
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, fmt.Errorf("config %q: %w", prefix, err)
	}
	return &conf, nil
}

// Load exports path into the environment. An empty path falls back to ./.env
// and is skipped silently when that file is absent.
func Load(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	exportMu.Lock()
	defer exportMu.Unlock()
	if exported[path] {
		return nil
	}

	if !explicit {
		ok, err := regularFile(path)
		if err != nil {
			return fmt.Errorf("stat default env file: %w", err)
		}
		if !ok {
			return nil
		}
	}

	if err := exportEnvironment(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	exported[path] = true
	return nil
}

func resolveEnvPath() string {
	parseOnce.Do(func() {
		if flag.Lookup("env") == nil {
			flag.StringVar(&envFilePath, "env", "", "path to .env file")
		}
		if !flag.Parsed() {
			flag.Parse()
		}
	})
	if p := strings.TrimSpace(envFilePath); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(EnvFileVar))
}

func regularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func exportEnvironment(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("env")
	}
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for k, val := range v.AllSettings() {
		name := strings.ToUpper(k)
		if cur, ok := os.LookupEnv(name); ok && cur != "" {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}
