// Package devserver is an in-memory implementation of the Jimo API and its
// identity service. It backs the integration tests and cmd/devserver.
package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"Jimo/internal/core/posts"
	"Jimo/internal/core/users"
)

const (
	feedPageSize    = 50
	discoverLimit   = 100
	mapLimit        = 500
	searchLimit     = 20
	defaultTokenTTL = time.Hour
	timeResolution  = time.Second
)

// Config holds the server settings. Zero values pick sensible defaults.
type Config struct {
	Logger *slog.Logger
	// Now overrides the clock for token issue/verify and post timestamps
	Now    func() time.Time
	Secret []byte
	// TokenTTL is the access token lifetime
	TokenTTL time.Duration
	// PasswordCost is the bcrypt cost. Defaults to bcrypt.DefaultCost.
	PasswordCost int
	// RequestsPerMinute caps requests per client IP. Zero disables the limit.
	RequestsPerMinute int
}

// Server holds all accounts, profiles and posts in memory
type Server struct {
	logger   *slog.Logger
	now      func() time.Time
	tokens   *signer
	validate *validator.Validate
	limiter  *RateLimiter

	accounts      map[string]*account            // by email
	refreshTokens map[string]string              // refresh token -> uid
	profiles      map[string]*profile            // by uid
	usernames     map[string]string              // lowercase username -> uid
	prefs         map[string]users.Preferences
	follows       map[string]map[string]struct{} // follower -> followees
	posts         map[posts.PostID]*postRecord
	places        map[posts.PlaceID]posts.Place
	reports       []Report
	resets        []string
	images        map[string]storedImage
	phones        map[string]string              // uid -> E.164 number
	invites       map[string]struct{}            // invited phone numbers
	waitlist      map[string]struct{}
	pushTokens    map[string]map[string]struct{} // uid -> tokens
	feedback      []Feedback

	cost int
	seq  int64
	mu   sync.RWMutex
}

type account struct {
	uid   string
	email string
	hash  []byte
}

type profile struct {
	picture   *string
	uid       string
	username  string
	firstName string
	lastName  string
}

type postRecord struct {
	createdAt      time.Time
	imageURL       *string
	customLocation *posts.Location
	likes          map[string]struct{}
	id             posts.PostID
	author         string
	placeID        posts.PlaceID
	category       string
	content        string
	seq            int64
}

// Report is a post report as received by the server
type Report struct {
	PostID   posts.PostID
	Reporter string
	Details  string
}

// New creates an empty server
func New(cfg Config) (*Server, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	if cfg.PasswordCost < bcrypt.MinCost || cfg.PasswordCost > bcrypt.MaxCost {
		return nil, errors.New("password cost out of range")
	}

	return &Server{
		logger:        cfg.Logger,
		now:           cfg.Now,
		tokens:        &signer{secret: cfg.Secret, ttl: cfg.TokenTTL, now: cfg.Now},
		validate:      newValidator(),
		limiter:       NewRateLimiter(cfg.RequestsPerMinute, time.Minute, cfg.Logger),
		cost:          cfg.PasswordCost,
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		profiles:      make(map[string]*profile),
		usernames:     make(map[string]string),
		prefs:         make(map[string]users.Preferences),
		follows:       make(map[string]map[string]struct{}),
		posts:         make(map[posts.PostID]*postRecord),
		places:        make(map[posts.PlaceID]posts.Place),
		images:        make(map[string]storedImage),
		phones:        make(map[string]string),
		invites:       make(map[string]struct{}),
		waitlist:      make(map[string]struct{}),
		pushTokens:    make(map[string]map[string]struct{}),
	}, nil
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(s.logRequests)
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.limiter.Middleware)

	s.registerIdentityRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		s.registerUserRoutes(r)
		s.registerPostRoutes(r)
		s.registerImageRoutes(r)
		s.registerOnboardingRoutes(r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

// AddPlace seeds a place so posts can reference it by id
func (s *Server) AddPlace(place posts.Place) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.places[place.PlaceID] = place
}

// Reports returns a copy of all received post reports
func (s *Server) Reports() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Report(nil), s.reports...)
}

// PasswordResets returns the emails a reset was requested for
func (s *Server) PasswordResets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.resets...)
}

// logRequests logs one line per request. chi's RequestID middleware reuses the
// client's X-Request-Id when one is sent.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
