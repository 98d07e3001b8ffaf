package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// cache maps a config struct type to its loaded value.
	cache sync.Map

	// dotenvOnce loads .env files once per process, before the first parse.
	dotenvOnce sync.Once
)

// Load parses environment variables into cfg, which must be a non-nil
// pointer to a struct with env tags. Each struct type is loaded once per
// process; later calls for the same type return the cached value.
func Load(cfg any) error {
	dotenvOnce.Do(func() {
		// Missing .env files are not an error; the environment wins anyway.
		_ = godotenv.Load()
	})

	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config target must be a non-nil struct pointer, got %T", cfg)
	}

	t := rv.Elem().Type()
	if cached, ok := cache.Load(t); ok {
		rv.Elem().Set(reflect.ValueOf(cached))
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parsing environment for %s: %w", t, err)
	}

	cache.Store(t, rv.Elem().Interface())
	return nil
}

// MustLoad is Load that panics on failure. Useful during startup where a
// missing required variable should abort the process.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
