package server

import "time"

// Config holds server configuration with environment variable support.
type Config struct {
	// Addr is the listen address.
	Addr string `env:"POTO_SERVER_ADDR" envDefault:":8080"`

	// Timeouts. The write timeout defaults to zero so streaming responses
	// are not cut off.
	ReadTimeout     time.Duration `env:"POTO_SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"POTO_SERVER_WRITE_TIMEOUT" envDefault:"0"`
	IdleTimeout     time.Duration `env:"POTO_SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"POTO_SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// MaxHeaderBytes caps request header size.
	MaxHeaderBytes int `env:"POTO_SERVER_MAX_HEADER_BYTES" envDefault:"1048576"`
}

// NewFromConfig creates a Server from configuration. Additional options
// override config values.
func NewFromConfig(cfg Config, opts ...Option) (*Server, error) {
	if cfg.Addr == "" {
		return nil, ErrMissingAddress
	}

	configOpts := []Option{
		WithReadTimeout(cfg.ReadTimeout),
		WithWriteTimeout(cfg.WriteTimeout),
		WithIdleTimeout(cfg.IdleTimeout),
		WithMaxHeaderBytes(cfg.MaxHeaderBytes),
	}
	if cfg.ShutdownTimeout > 0 {
		configOpts = append(configOpts, WithShutdownTimeout(cfg.ShutdownTimeout))
	}

	return New(cfg.Addr, append(configOpts, opts...)...), nil
}
