// Command parcelview drives a map session against a running parcelbook API.
// It reads one command per line from stdin and prints a summary of every
// rendered view, which makes it usable both interactively and from scripts.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/parcelbook/internal/client"
	"github.com/stwalsh4118/parcelbook/internal/counties"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/parcelcache"
)

// Options are the command line flags.
type Options struct {
	APIURL    string        `short:"a" long:"api"        env:"PARCELBOOK_API_URL" description:"Base URL of the parcelbook API" default:"http://localhost:8080"`
	County    string        `short:"c" long:"county"     env:"PARCELVIEW_COUNTY"  description:"County shown at startup" default:"burnet"`
	Zoom      int           `short:"z" long:"zoom"       env:"PARCELVIEW_ZOOM"    description:"Initial zoom level" default:"15"`
	Debounce  time.Duration `short:"d" long:"debounce"   env:"PARCELVIEW_DEBOUNCE" description:"Viewport move debounce window" default:"200ms"`
	Timeout   time.Duration `short:"t" long:"timeout"    env:"PARCELVIEW_TIMEOUT" description:"API request timeout" default:"30s"`
	ExportDir string        `short:"o" long:"export-dir" env:"PARCELVIEW_EXPORT_DIR" description:"Directory for CSV exports" default:"."`
	LogLevel  string        `short:"l" long:"log-level"  env:"LOG_LEVEL"          description:"Log level" default:"warn"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", opts.LogLevel)
		os.Exit(1)
	}
	// stdout carries session output; logs go to stderr.
	log := logger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, level)

	catalog := counties.Default()
	county, ok := catalog.Lookup(opts.County)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown county %q\n", opts.County)
		os.Exit(1)
	}

	api := client.New(opts.APIURL, &http.Client{Timeout: opts.Timeout}, log)
	cache := parcelcache.New(api, parcelcache.DefaultZoomPolicy(), log)

	s := newSession(api, cache, catalog, os.Stdout, log)
	s.exportDir = opts.ExportDir
	s.start(county.Key, orb.Point{county.Center[1], county.Center[0]}, opts.Zoom, opts.Debounce)
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.syncSaved(ctx); err != nil {
		log.Warn("Failed to load saved properties", map[string]interface{}{"error": err.Error()})
	}

	if err := s.run(ctx, os.Stdin); err != nil {
		log.Error("Session ended with error", err, nil)
		os.Exit(1)
	}
}
