package devserver

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"Jimo/internal/core/posts"
)

const (
	maxImageSize = 8 << 20
	imageBaseURL = "https://images.jimoapp.com/"

	// Stored images fit inside this square and are re-encoded as JPEG
	maxImageDimension = 1080
	jpegQuality       = 85
)

type storedImage struct {
	owner       string
	contentType string
	data        []byte
}

func imageURL(id string) *string {
	url := imageBaseURL + id
	return &url
}

func (s *Server) registerImageRoutes(r chi.Router) {
	r.Post("/images", s.handleUploadImage)
	r.Post("/me/photo", s.handleUploadProfilePicture)
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	img, ok := readImage(w, r)
	if !ok {
		return
	}
	img.owner = GetUserID(r)
	id := uuid.NewString()

	s.mu.Lock()
	s.images[id] = img
	s.mu.Unlock()

	s.logger.Info("image uploaded", "image_id", id, "uid", img.owner, "bytes", len(img.data))
	writeJSON(w, http.StatusOK, posts.ImageUploadResponse{ImageID: id})
}

func (s *Server) handleUploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	img, ok := readImage(w, r)
	if !ok {
		return
	}
	uid := GetUserID(r)
	img.owner = uid

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[uid]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "No profile for this account")
		return
	}
	id := uuid.NewString()
	s.images[id] = img
	p.picture = imageURL(id)

	writeJSON(w, http.StatusOK, s.renderUserLocked(p))
}

// readImage reads the "file" part of a multipart upload. It writes the error
// response itself.
func readImage(w http.ResponseWriter, r *http.Request) (storedImage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+1<<20)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFieldErrors(w, map[string]string{"file": "Too large"})
			return storedImage{}, false
		}
		writeFieldErrors(w, map[string]string{"file": "Field is required"})
		return storedImage{}, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		writeFieldErrors(w, map[string]string{"file": "Unreadable upload"})
		return storedImage{}, false
	}

	contentType := http.DetectContentType(data)
	switch {
	case len(data) == 0:
		writeFieldErrors(w, map[string]string{"file": "Field is required"})
	case len(data) > maxImageSize:
		writeFieldErrors(w, map[string]string{"file": "Too large"})
	case !strings.HasPrefix(contentType, "image/"):
		writeFieldErrors(w, map[string]string{"file": "Not an image"})
	default:
		normalized, err := normalizeImage(data)
		if err != nil {
			writeFieldErrors(w, map[string]string{"file": "Not an image"})
			return storedImage{}, false
		}
		return storedImage{contentType: "image/jpeg", data: normalized}, true
	}
	return storedImage{}, false
}

// normalizeImage applies EXIF orientation, shrinks the image to fit
// maxImageDimension without upscaling, and re-encodes it as JPEG
func normalizeImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	img = imaging.Fit(img, maxImageDimension, maxImageDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Image returns a stored image and its content type
func (s *Server) Image(id string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[id]
	if !ok {
		return nil, "", false
	}
	return img.data, img.contentType, true
}
