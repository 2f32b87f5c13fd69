package devserver

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"Jimo/internal/core/users"
)

func (s *Server) registerUserRoutes(r chi.Router) {
	r.Get("/me", s.handleGetMe)
	r.Get("/search/users", s.handleSearchUsers)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.Route("/{username}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Post("/", s.handleUpdateProfile)
			r.Get("/preferences", s.handleGetPreferences)
			r.Post("/preferences", s.handleUpdatePreferences)
			r.Get("/feed", s.handleFeed)
			r.Get("/posts", s.handleUserPosts)
			r.Get("/discover", s.handleDiscover)
			r.Post("/follow", s.handleFollow)
			r.Post("/unfollow", s.handleUnfollow)
			r.Get("/followStatus", s.handleFollowStatus)
			r.Post("/contacts", s.handleContacts)
		})
	})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[GetUserID(r)]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "No profile for this account")
		return
	}
	writeJSON(w, http.StatusOK, s.renderUserLocked(p))
}

// handleCreateUser reports validation and conflict problems in the response
// body with status 200.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req users.CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeFieldErrors(w, map[string]string{"body": "Invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusOK, users.CreateUserResponse{Error: fieldErrors(err)})
		return
	}

	uid := GetUserID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[uid]; exists {
		writeJSON(w, http.StatusOK, users.CreateUserResponse{
			Error: map[string]string{"uid": "Profile already exists"},
		})
		return
	}
	if _, taken := s.usernames[strings.ToLower(req.Username)]; taken {
		writeJSON(w, http.StatusOK, users.CreateUserResponse{
			Error: map[string]string{"username": "Username taken"},
		})
		return
	}

	p := &profile{
		uid:       uid,
		username:  req.Username,
		firstName: req.FirstName,
		lastName:  req.LastName,
	}
	s.profiles[uid] = p
	s.usernames[strings.ToLower(req.Username)] = uid
	s.prefs[uid] = users.Preferences{FollowNotifications: true, PostLikedNotifications: true, SearchableByPhoneNumber: true}

	s.logger.Info("profile created", "uid", uid, "username", req.Username)
	created := s.renderUserLocked(p)
	writeJSON(w, http.StatusOK, users.CreateUserResponse{Created: &created})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profileByNameLocked(chi.URLParam(r, "username"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, s.renderUserLocked(p))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req users.UpdateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeFieldErrors(w, map[string]string{"body": "Invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusOK, users.UpdateProfileResponse{Error: fieldErrors(err)})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownProfileLocked(w, r)
	if !ok {
		return
	}

	if req.Username != nil && !strings.EqualFold(*req.Username, p.username) {
		if _, taken := s.usernames[strings.ToLower(*req.Username)]; taken {
			writeJSON(w, http.StatusOK, users.UpdateProfileResponse{
				Error: map[string]string{"username": "Username taken"},
			})
			return
		}
		delete(s.usernames, strings.ToLower(p.username))
		s.usernames[strings.ToLower(*req.Username)] = p.uid
	}
	if req.Username != nil {
		p.username = *req.Username
	}
	if req.FirstName != nil {
		p.firstName = *req.FirstName
	}
	if req.LastName != nil {
		p.lastName = *req.LastName
	}

	updated := s.renderUserLocked(p)
	writeJSON(w, http.StatusOK, users.UpdateProfileResponse{User: &updated})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.ownProfileLocked(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.prefs[p.uid])
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs users.Preferences
	if err := decodeBody(r, &prefs); err != nil {
		writeFieldErrors(w, map[string]string{"body": "Invalid JSON body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownProfileLocked(w, r)
	if !ok {
		return
	}
	s.prefs[p.uid] = prefs
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []users.User{}
	if q == "" {
		writeJSON(w, http.StatusOK, out)
		return
	}
	for _, p := range s.profiles {
		if strings.Contains(strings.ToLower(p.username), q) ||
			strings.Contains(strings.ToLower(p.firstName+" "+p.lastName), q) {
			out = append(out, s.renderUserLocked(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	s.setFollow(w, r, true)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	s.setFollow(w, r, false)
}

func (s *Server) setFollow(w http.ResponseWriter, r *http.Request, follow bool) {
	uid := GetUserID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.profileByNameLocked(chi.URLParam(r, "username"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "User not found")
		return
	}
	if target.uid == uid {
		writeFieldErrors(w, map[string]string{"username": "Cannot follow yourself"})
		return
	}

	if follow {
		if s.follows[uid] == nil {
			s.follows[uid] = make(map[string]struct{})
		}
		s.follows[uid][target.uid] = struct{}{}
	} else {
		delete(s.follows[uid], target.uid)
	}
	writeJSON(w, http.StatusOK, users.FollowResponse{Followed: follow})
}

func (s *Server) handleFollowStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.profileByNameLocked(chi.URLParam(r, "username"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "User not found")
		return
	}
	_, followed := s.follows[GetUserID(r)][target.uid]
	writeJSON(w, http.StatusOK, users.FollowResponse{Followed: followed})
}

func (s *Server) profileByNameLocked(username string) (*profile, bool) {
	uid, ok := s.usernames[strings.ToLower(username)]
	if !ok {
		return nil, false
	}
	p, ok := s.profiles[uid]
	return p, ok
}

// ownProfileLocked resolves the {username} path parameter and requires it to
// belong to the caller. It writes the error response itself.
func (s *Server) ownProfileLocked(w http.ResponseWriter, r *http.Request) (*profile, bool) {
	p, ok := s.profileByNameLocked(chi.URLParam(r, "username"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "User not found")
		return nil, false
	}
	if p.uid != GetUserID(r) {
		writeError(w, http.StatusForbidden, "Forbidden", "Cannot access another user's settings")
		return nil, false
	}
	return p, true
}

func (s *Server) renderUserLocked(p *profile) users.User {
	u := users.User{
		ProfilePictureURL: p.picture,
		UserID:            p.uid,
		Username:          p.username,
		FirstName:         p.firstName,
		LastName:          p.lastName,
		FollowingCount:    len(s.follows[p.uid]),
	}
	for _, rec := range s.posts {
		if rec.author == p.uid {
			u.PostCount++
		}
	}
	for _, followees := range s.follows {
		if _, ok := followees[p.uid]; ok {
			u.FollowerCount++
		}
	}
	return u
}
