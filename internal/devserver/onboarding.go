package devserver

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"Jimo/internal/core/posts"
	"Jimo/internal/core/users"
)

// Feedback is a feedback submission as received by the server
type Feedback struct {
	UID      string
	Contents string
	FollowUp bool
}

func (s *Server) registerOnboardingRoutes(r chi.Router) {
	r.Route("/waitlist", func(r chi.Router) {
		r.Get("/status", s.handleWaitlistStatus)
		r.Post("/", s.handleJoinWaitlist)
		r.Post("/invites", s.handleInvite)
	})
	r.Post("/notifications/token", s.handleRegisterToken)
	r.Delete("/notifications/token", s.handleRemoveToken)

	r.Post("/feedback/", s.handleFeedback)
}

func (s *Server) handleWaitlistStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, s.waitlistStatusLocked(GetUserID(r)))
}

func (s *Server) handleJoinWaitlist(w http.ResponseWriter, r *http.Request) {
	uid := GetUserID(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitlist[uid] = struct{}{}
	writeJSON(w, http.StatusOK, s.waitlistStatusLocked(uid))
}

// waitlistStatusLocked reports an account as invited once someone invited
// its phone number
func (s *Server) waitlistStatusLocked(uid string) users.WaitlistStatus {
	_, joined := s.waitlist[uid]
	phone, hasPhone := s.phones[uid]
	_, invited := s.invites[phone]
	return users.WaitlistStatus{Invited: hasPhone && invited, Joined: joined}
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req users.InviteUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeFieldErrors(w, map[string]string{"body": "Invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeFieldErrors(w, fieldErrors(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[GetUserID(r)]; !ok {
		writeError(w, http.StatusForbidden, "Forbidden", "Create a profile before inviting")
		return
	}
	s.invites[req.PhoneNumber] = struct{}{}
	writeJSON(w, http.StatusOK, users.InviteStatus{Invited: true})
}

// handleContacts returns the users among the given phone numbers who are
// searchable by phone, excluding the caller
func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	var req users.PhoneNumbersRequest
	if err := decodeBody(r, &req); err != nil {
		writeFieldErrors(w, map[string]string{"body": "Invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeFieldErrors(w, fieldErrors(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	caller, ok := s.ownProfileLocked(w, r)
	if !ok {
		return
	}
	wanted := make(map[string]struct{}, len(req.PhoneNumbers))
	for _, phone := range req.PhoneNumbers {
		wanted[phone] = struct{}{}
	}

	out := []users.User{}
	for uid, phone := range s.phones {
		if _, ok := wanted[phone]; !ok || uid == caller.uid || !s.prefs[uid].SearchableByPhoneNumber {
			continue
		}
		if p, ok := s.profiles[uid]; ok {
			out = append(out, s.renderUserLocked(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	s.setNotificationToken(w, r, true)
}

func (s *Server) handleRemoveToken(w http.ResponseWriter, r *http.Request) {
	s.setNotificationToken(w, r, false)
}

func (s *Server) setNotificationToken(w http.ResponseWriter, r *http.Request, register bool) {
	var req users.NotificationTokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeFieldErrors(w, map[string]string{"body": "Invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeFieldErrors(w, fieldErrors(err))
		return
	}
	uid := GetUserID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if register {
		if s.pushTokens[uid] == nil {
			s.pushTokens[uid] = make(map[string]struct{})
		}
		s.pushTokens[uid][req.Token] = struct{}{}
	} else {
		delete(s.pushTokens[uid], req.Token)
	}
	writeJSON(w, http.StatusOK, posts.SimpleResponse{Success: true})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req users.FeedbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeFieldErrors(w, map[string]string{"body": "Invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeFieldErrors(w, fieldErrors(err))
		return
	}

	s.mu.Lock()
	s.feedback = append(s.feedback, Feedback{UID: GetUserID(r), Contents: req.Contents, FollowUp: req.FollowUp})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, posts.SimpleResponse{Success: true})
}

// SetPhoneNumber attaches a phone number to username's account, as the phone
// sign-in flow would
func (s *Server) SetPhoneNumber(username, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profileByNameLocked(username)
	if !ok {
		return errors.New("unknown user " + username)
	}
	s.phones[p.uid] = phone
	return nil
}

// NotificationTokens returns the push tokens registered for uid, sorted
func (s *Server) NotificationTokens(uid string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.pushTokens[uid]))
	for token := range s.pushTokens[uid] {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// FeedbackReceived returns a copy of all feedback submissions
func (s *Server) FeedbackReceived() []Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Feedback(nil), s.feedback...)
}
