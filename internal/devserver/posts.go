package devserver

import (
	"math"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"Jimo/internal/core/posts"
)

const earthRadiusMeters = 6371000

func (s *Server) registerPostRoutes(r chi.Router) {
	r.Get("/places/map", s.handleMap)

	r.Route("/posts", func(r chi.Router) {
		r.Post("/", s.handleCreatePost)
		r.Route("/{postID}", func(r chi.Router) {
			r.Delete("/", s.handleDeletePost)
			r.Post("/likes", s.handleLike)
			r.Delete("/likes", s.handleUnlike)
			r.Post("/report", s.handleReport)
		})
	})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req posts.CreatePostRequest
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

	if _, ok := s.profiles[uid]; !ok {
		writeError(w, http.StatusForbidden, "Forbidden", "Create a profile before posting")
		return
	}

	if req.ImageID != nil {
		if _, ok := s.images[*req.ImageID]; !ok {
			writeFieldErrors(w, map[string]string{"imageId": "Unknown image"})
			return
		}
	}

	var place posts.Place
	if req.PlaceID != nil {
		p, ok := s.places[*req.PlaceID]
		if !ok {
			writeFieldErrors(w, map[string]string{"placeId": "Unknown place"})
			return
		}
		place = p
	} else {
		place = s.findOrCreatePlaceLocked(*req.Place)
	}

	s.seq++
	rec := &postRecord{
		id:             uuid.NewString(),
		author:         uid,
		placeID:        place.PlaceID,
		category:       req.Category,
		content:        req.Content,
		customLocation: req.CustomLocation,
		createdAt:      s.now().UTC().Truncate(timeResolution),
		likes:          make(map[string]struct{}),
		seq:            s.seq,
	}
	if req.ImageID != nil {
		rec.imageURL = imageURL(*req.ImageID)
	}
	s.posts[rec.id] = rec

	s.logger.Info("post created", "post_id", rec.id, "uid", uid, "place_id", place.PlaceID)
	writeJSON(w, http.StatusOK, s.renderPostLocked(rec, uid))
}

// findOrCreatePlaceLocked reuses a known place with the same name inside the
// request's region, or at the exact location when no region is given.
func (s *Server) findOrCreatePlaceLocked(req posts.MaybeCreatePlaceRequest) posts.Place {
	for _, p := range s.places {
		if p.Name != req.Name {
			continue
		}
		if req.Region != nil {
			center := posts.Location{Latitude: req.Region.Latitude, Longitude: req.Region.Longitude}
			if distanceMeters(center, p.Location) <= req.Region.Radius {
				return p
			}
		} else if p.Location == req.Location {
			return p
		}
	}

	p := posts.Place{PlaceID: uuid.NewString(), Name: req.Name, Location: req.Location}
	s.places[p.PlaceID] = p
	return p
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	uid := GetUserID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.posts[chi.URLParam(r, "postID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "Post not found")
		return
	}
	if rec.author != uid {
		writeJSON(w, http.StatusOK, posts.DeletePostResponse{Deleted: false})
		return
	}
	delete(s.posts, rec.id)
	writeJSON(w, http.StatusOK, posts.DeletePostResponse{Deleted: true})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.setLike(w, r, true)
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	s.setLike(w, r, false)
}

func (s *Server) setLike(w http.ResponseWriter, r *http.Request, liked bool) {
	uid := GetUserID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.posts[chi.URLParam(r, "postID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "Post not found")
		return
	}
	if liked {
		rec.likes[uid] = struct{}{}
	} else {
		delete(rec.likes, uid)
	}
	writeJSON(w, http.StatusOK, posts.LikePostResponse{Likes: len(rec.likes)})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req posts.ReportPostRequest
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

	rec, ok := s.posts[chi.URLParam(r, "postID")]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "Post not found")
		return
	}
	s.reports = append(s.reports, Report{PostID: rec.id, Reporter: GetUserID(r), Details: req.Details})
	writeJSON(w, http.StatusOK, posts.SimpleResponse{Success: true})
}

// handleFeed pages through the viewer's and their followees' posts, newest
// first. before is the id of the last post already seen.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.ownProfileLocked(w, r)
	if !ok {
		return
	}

	authors := map[string]struct{}{p.uid: {}}
	for followee := range s.follows[p.uid] {
		authors[followee] = struct{}{}
	}
	feed := s.newestFirstLocked(func(rec *postRecord) bool {
		_, ok := authors[rec.author]
		return ok
	})

	if before := r.URL.Query().Get("before"); before != "" {
		cursor, ok := s.posts[before]
		if !ok {
			writeFieldErrors(w, map[string]string{"before": "Unknown post"})
			return
		}
		i := sort.Search(len(feed), func(i int) bool { return newer(cursor, feed[i]) })
		feed = feed[i:]
	}
	if len(feed) > feedPageSize {
		feed = feed[:feedPageSize]
	}
	writeJSON(w, http.StatusOK, s.renderPostsLocked(feed, p.uid))
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	author, ok := s.profileByNameLocked(chi.URLParam(r, "username"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "User not found")
		return
	}
	list := s.newestFirstLocked(func(rec *postRecord) bool { return rec.author == author.uid })
	writeJSON(w, http.StatusOK, s.renderPostsLocked(list, GetUserID(r)))
}

// handleDiscover returns recent posts by people the viewer does not follow
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.ownProfileLocked(w, r)
	if !ok {
		return
	}
	list := s.newestFirstLocked(func(rec *postRecord) bool {
		_, followed := s.follows[p.uid][rec.author]
		return rec.author != p.uid && !followed
	})
	if len(list) > discoverLimit {
		list = list[:discoverLimit]
	}
	writeJSON(w, http.StatusOK, s.renderPostsLocked(list, p.uid))
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.newestFirstLocked(func(*postRecord) bool { return true })
	if len(list) > mapLimit {
		list = list[:mapLimit]
	}
	writeJSON(w, http.StatusOK, s.renderPostsLocked(list, GetUserID(r)))
}

func (s *Server) newestFirstLocked(keep func(*postRecord) bool) []*postRecord {
	var out []*postRecord
	for _, rec := range s.posts {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out
}

// newer orders by creation time, then by insertion order for equal timestamps
func newer(a, b *postRecord) bool {
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.After(b.createdAt)
	}
	return a.seq > b.seq
}

func (s *Server) renderPostsLocked(list []*postRecord, viewer string) []posts.Post {
	out := make([]posts.Post, 0, len(list))
	for _, rec := range list {
		out = append(out, s.renderPostLocked(rec, viewer))
	}
	return out
}

func (s *Server) renderPostLocked(rec *postRecord, viewer string) posts.Post {
	_, liked := rec.likes[viewer]
	post := posts.Post{
		CreatedAt:      rec.createdAt,
		ImageURL:       rec.imageURL,
		CustomLocation: rec.customLocation,
		Place:          s.places[rec.placeID],
		PostID:         rec.id,
		Category:       rec.category,
		Content:        rec.content,
		LikeCount:      len(rec.likes),
		Liked:          liked,
	}
	if author, ok := s.profiles[rec.author]; ok {
		post.User = s.renderUserLocked(author)
	}
	return post
}

// distanceMeters is the haversine great-circle distance
func distanceMeters(a, b posts.Location) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
