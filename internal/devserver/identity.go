package devserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type tokenRequest struct {
	GrantType    string `json:"grantType"`
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func (s *Server) registerIdentityRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignUp)
		r.Post("/signin", s.handleSignIn)
		r.Post("/token", s.handleToken)
		r.Post("/signout", s.handleSignOut)
		r.Post("/reset", s.handleReset)
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "A valid email and a password of at least 6 characters are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[req.Email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "EmailExists", "An account with this email already exists")
		return
	}
	acct := &account{uid: uuid.NewString(), email: req.Email, hash: hash}
	s.accounts[req.Email] = acct
	s.mu.Unlock()

	s.logger.Info("account created", "uid", acct.uid)
	s.writeSession(w, acct.uid, acct.email)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.mu.RLock()
	acct, ok := s.accounts[email]
	s.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "InvalidCredentials", "Email or password is incorrect")
		return
	}
	s.writeSession(w, acct.uid, acct.email)
}

// handleToken rotates the refresh token; the old one is revoked
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
		return
	}
	if req.GrantType != "refresh_token" {
		writeError(w, http.StatusBadRequest, "UnsupportedGrantType", "grantType must be refresh_token")
		return
	}

	s.mu.Lock()
	uid, ok := s.refreshTokens[req.RefreshToken]
	if ok {
		delete(s.refreshTokens, req.RefreshToken)
	}
	email := s.emailForLocked(uid)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusUnauthorized, "InvalidGrant", "Refresh token is invalid or revoked")
		return
	}
	s.writeSession(w, uid, email)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
		return
	}

	s.mu.Lock()
	delete(s.refreshTokens, req.RefreshToken)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, struct{}{})
}

// handleReset responds 200 whether or not the account exists
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "email is required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.mu.Lock()
	if _, ok := s.accounts[email]; ok {
		s.resets = append(s.resets, email)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) writeSession(w http.ResponseWriter, uid, email string) {
	access, exp, err := s.tokens.issue(uid, email)
	if err != nil {
		s.logger.Error("failed to issue token", "uid", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
		return
	}
	refresh := uuid.NewString()

	s.mu.Lock()
	s.refreshTokens[refresh] = uid
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, sessionResponse{
		UID:          uid,
		Email:        email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(exp.Sub(s.now()).Seconds()),
	})
}

func (s *Server) emailForLocked(uid string) string {
	for _, acct := range s.accounts {
		if acct.uid == uid {
			return acct.email
		}
	}
	return ""
}
