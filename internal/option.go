package internal

import (
	"fmt"
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	server     string
	hypergraph string
	out        io.Writer
}

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithServer makes client commands talk to a running server at baseURL
// instead of opening the store in-process.
func WithServer(baseURL string) Option {
	return func(a *application) {
		a.server = baseURL
	}
}

// WithHypergraph selects the hypergraph client commands work on. A new one
// is created when empty or unknown.
func WithHypergraph(id string) Option {
	return func(a *application) {
		a.hypergraph = id
	}
}

// WithOutput sets where client commands print their results.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
