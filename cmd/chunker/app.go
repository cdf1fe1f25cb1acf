package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Packages
	kong "github.com/alecthomas/kong"
	zerolog "github.com/rs/zerolog"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	Debug bool `help:"Enable debug output"`
	HTTP  struct {
		Addr    string        `env:"CHUNKER_ADDR" default:"localhost:8080" help:"Server listen address or client target address"`
		Prefix  string        `env:"CHUNKER_PREFIX" default:"/api/chunker" help:"Path prefix for the HTTP API"`
		Origin  string        `default:"" help:"Cross-origin protection (CSRF) origin. Empty string allows same-origin only, '*' allows all origins"`
		Timeout time.Duration `default:"0" help:"Client request timeout (0 means no timeout)"`
	} `embed:"" prefix:"http."`

	vars   kong.Vars `kong:"-"` // Variables for kong
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

type App interface {
	Context() context.Context
	Logger() *zerolog.Logger
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewApp(app Globals, vars kong.Vars) *Globals {
	// Set the vars
	app.vars = vars

	// Human-readable logging to stderr, debug events with --debug
	level := zerolog.InfoLevel
	if app.Debug {
		level = zerolog.DebugLevel
	}
	app.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	// This context is cancelled when the process receives a SIGINT or SIGTERM
	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Return the app
	return &app
}

func (app *Globals) Close() error {
	app.cancel()
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// METHODS

func (app *Globals) Context() context.Context {
	return app.ctx
}

func (app *Globals) Logger() *zerolog.Logger {
	return &app.log
}
