// devserver runs the in-memory Jimo API and identity service for local
// development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"Jimo/internal/config"
	"Jimo/internal/core/posts"
	"Jimo/internal/devserver"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, addr, secret string
	var places []string

	flagSet := pflag.NewFlagSet("devserver", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file (default: $JIMO_CONFIG)")
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides devserver.addr)")
	flagSet.StringVar(&secret, "secret", "", "token signing secret (overrides devserver.secret)")
	flagSet.StringSliceVar(&places, "place", []string{"tartine:Tartine Bakery:37.7614:-122.4241"},
		"seed a place as id:name:lat:lng (repeatable)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.DevServer.Addr = addr
	}
	if secret != "" {
		cfg.DevServer.Secret = secret
	}
	logger := cfg.NewLogger(os.Stderr)

	srv, err := devserver.New(devserver.Config{
		Logger:            logger,
		Secret:            []byte(cfg.DevServer.Secret),
		TokenTTL:          cfg.DevServer.TokenTTL,
		RequestsPerMinute: cfg.DevServer.RequestsPerMinute,
	})
	if err != nil {
		return err
	}
	for _, spec := range places {
		place, err := parsePlace(spec)
		if err != nil {
			return err
		}
		srv.AddPlace(place)
	}

	server := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dev server listening", "addr", cfg.DevServer.Addr, "places", len(places))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func parsePlace(spec string) (posts.Place, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 4 {
		return posts.Place{}, fmt.Errorf("invalid --place %q, want id:name:lat:lng", spec)
	}
	lat, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return posts.Place{}, fmt.Errorf("invalid latitude in --place %q: %w", spec, err)
	}
	lng, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return posts.Place{}, fmt.Errorf("invalid longitude in --place %q: %w", spec, err)
	}
	return posts.Place{
		PlaceID:  parts[0],
		Name:     parts[1],
		Location: posts.Location{Latitude: lat, Longitude: lng},
	}, nil
}
