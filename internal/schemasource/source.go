// Package schemasource provides the descriptive schema providers: a static
// document on disk and a remote schema service. Both return the same
// key -> type tag mapping and satisfy core.SchemaProvider.
package schemasource

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/recimport/internal/core"
)

// Config selects and configures a provider.
type Config struct {
	Source   string // "file" or "remote"
	Path     string
	URL      string
	Token    string
	Timeout  time.Duration
	RetryMax int
}

// New builds the provider named by cfg.Source.
func New(cfg Config) (core.SchemaProvider, error) {
	switch cfg.Source {
	case "", "file":
		return NewFile(cfg.Path), nil
	case "remote":
		return NewRemote(RemoteConfig{
			URL:      cfg.URL,
			Token:    cfg.Token,
			Timeout:  cfg.Timeout,
			RetryMax: cfg.RetryMax,
		})
	default:
		return nil, fmt.Errorf("unknown schema source %q", cfg.Source)
	}
}
