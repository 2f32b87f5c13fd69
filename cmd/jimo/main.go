// jimo is a command line client for the Jimo API. It signs in, makes sure a
// profile exists, optionally posts or likes, and prints the feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"Jimo/internal/apiclient"
	"Jimo/internal/config"
	"Jimo/internal/core/auth"
	"Jimo/internal/core/posts"
	"Jimo/internal/core/session"
	"Jimo/internal/core/store"
	"Jimo/internal/core/users"
)

type options struct {
	configPath  string
	email       string
	password    string
	signUp      bool
	username    string
	before      string
	like        string
	unlike      string
	post        string
	place       string
	image       string
	metricsAddr string
}

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
	var opts options

	flagSet := pflag.NewFlagSet("jimo", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to YAML config file (default: $JIMO_CONFIG)")
	flagSet.StringVar(&opts.email, "email", "", "account email")
	flagSet.StringVar(&opts.password, "password", "", "account password (default: $JIMO_PASSWORD)")
	flagSet.BoolVar(&opts.signUp, "signup", false, "create the account instead of signing in")
	flagSet.StringVar(&opts.username, "username", "", "username to create when the account has no profile")
	flagSet.StringVar(&opts.before, "before", "", "print the feed page older than this post id")
	flagSet.StringVar(&opts.like, "like", "", "like the post with this id")
	flagSet.StringVar(&opts.unlike, "unlike", "", "remove the like from the post with this id")
	flagSet.StringVar(&opts.post, "post", "", "publish a post with this content")
	flagSet.StringVar(&opts.place, "place", "", "place id for --post")
	flagSet.StringVar(&opts.image, "image", "", "image file to attach to --post")
	flagSet.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if opts.password == "" {
		opts.password = os.Getenv("JIMO_PASSWORD")
	}
	if opts.email == "" || opts.password == "" {
		return errors.New("--email and --password (or JIMO_PASSWORD) are required")
	}
	if opts.post != "" && opts.place == "" {
		return errors.New("--post requires --place")
	}
	if opts.image != "" && opts.post == "" {
		return errors.New("--image requires --post")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := connect(cfg, logger, opts.metricsAddr)
	if err != nil {
		return err
	}
	defer orch.Wait()

	return runSession(ctx, orch, opts, os.Stdout)
}

// connect wires the credential provider, request pipeline, store and session
func connect(cfg *config.Config, logger *slog.Logger, metricsAddr string) (*session.Orchestrator, error) {
	httpClient := &http.Client{Timeout: cfg.API.Timeout}

	backend, err := auth.NewHTTPBackend(cfg.Identity.BaseURL, cfg.Identity.APIKey, httpClient)
	if err != nil {
		return nil, err
	}
	provider := auth.NewProvider(backend, cfg.Identity.RefreshBuffer, logger.With("component", "auth"))

	clientOpts := []apiclient.Option{
		apiclient.WithHTTPClient(httpClient),
		apiclient.WithLogger(logger.With("component", "apiclient")),
		apiclient.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
	}
	if cfg.API.Metrics || metricsAddr != "" {
		clientOpts = append(clientOpts, apiclient.WithMetrics(prometheus.DefaultRegisterer))
	}
	client, err := apiclient.New(cfg.API.BaseURL, provider, clientOpts...)
	if err != nil {
		return nil, err
	}

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	st := store.New(logger.With("component", "store"))
	return session.New(client, provider, st, logger.With("component", "session")), nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "addr", addr, "error", err)
	}
}

func runSession(ctx context.Context, orch *session.Orchestrator, opts options, out io.Writer) error {
	unsubscribe := orch.Subscribe(func(s session.State) {
		slog.Debug("session state", "state", s.String())
	})
	defer unsubscribe()

	events := orch.Store().Subscribe()
	defer events.Close()
	go func() {
		for ev := range events.Events() {
			slog.Debug("store event", "type", ev.Type.String(), "post_id", ev.PostID)
		}
	}()

	orch.Start(ctx)

	var err error
	if opts.signUp {
		_, err = orch.SignUp(ctx, opts.email, opts.password)
	} else {
		_, err = orch.SignIn(ctx, opts.email, opts.password)
	}
	if err != nil {
		return err
	}
	orch.Wait()

	if err := ensureProfile(ctx, orch, opts.username); err != nil {
		return err
	}

	if opts.post != "" {
		req := posts.CreatePostRequest{PlaceID: &opts.place, Content: opts.post}
		if opts.image != "" {
			data, err := os.ReadFile(opts.image)
			if err != nil {
				return err
			}
			imageID, err := orch.UploadImage(ctx, apiclient.Upload{Data: data, FileName: filepath.Base(opts.image)})
			if err != nil {
				return describe("upload image", err)
			}
			req.ImageID = &imageID
		}
		post, err := orch.CreatePost(ctx, req)
		if err != nil {
			return describe("post", err)
		}
		fmt.Fprintf(out, "posted %s\n", post.PostID)
	}
	if opts.like != "" {
		if err := orch.LikePost(ctx, opts.like); err != nil {
			return describe("like", err)
		}
	}
	if opts.unlike != "" {
		if err := orch.UnlikePost(ctx, opts.unlike); err != nil {
			return describe("unlike", err)
		}
	}

	if opts.before != "" {
		// Load the first page so the older one is appended after it
		if _, err := orch.FetchFeed(ctx, ""); err != nil {
			return describe("feed", err)
		}
	}
	if _, err := orch.FetchFeed(ctx, opts.before); err != nil {
		return describe("feed", err)
	}
	printFeed(out, orch.Store())
	return nil
}

// ensureProfile waits out the initial profile load and creates the profile
// when the account has none.
func ensureProfile(ctx context.Context, orch *session.Orchestrator, username string) error {
	switch p := orch.State().Profile.(type) {
	case session.ProfilePresent:
		return nil
	case session.ProfileFailed:
		return fmt.Errorf("loading profile: %w", p.Err)
	case session.ProfileAbsent:
		if username == "" {
			return errors.New("account has no profile, pass --username to create one")
		}
	default:
		return fmt.Errorf("unexpected profile state %s", session.DescribeProfile(p))
	}

	resp, err := orch.CreateUser(ctx, users.CreateUserRequest{
		Username:  username,
		FirstName: username,
		LastName:  username,
	})
	if err != nil {
		return describe("create profile", err)
	}
	if resp.Created == nil {
		return fmt.Errorf("create profile rejected: %s", formatFields(resp.Error))
	}
	return nil
}

func printFeed(out io.Writer, st *store.Store) {
	feed := st.Resolve(st.Feed())
	if len(feed) == 0 {
		fmt.Fprintln(out, "feed is empty")
		return
	}
	for _, p := range feed {
		liked := " "
		if p.Liked {
			liked = "*"
		}
		fmt.Fprintf(out, "%s %s  @%-20s %-24s %3d  %s\n",
			liked, p.PostID, p.User.Username, p.Place.Name, p.LikeCount, p.Content)
	}
}

// describe adds the failure kind and any field messages to err
func describe(action string, err error) error {
	kind := apiclient.KindOf(err)
	if fields, ok := apiclient.RequestFields(err); ok && len(fields) > 0 {
		return fmt.Errorf("%s failed (%s): %s", action, kind, formatFields(fields))
	}
	return fmt.Errorf("%s failed (%s): %w", action, kind, err)
}

func formatFields(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, k+": "+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
