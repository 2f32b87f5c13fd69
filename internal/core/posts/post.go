package posts

import (
	"time"

	"Jimo/internal/core/users"
)

// PostID identifies a post. Assigned by the server.
type PostID = string

// Post is an immutable snapshot of a post as served by the Jimo API.
// The embedded User and Place are copies taken at fetch time, not live
// references. Any change produces a new Post stored under the same PostID.
type Post struct {
	CreatedAt      time.Time  `json:"createdAt"`
	ImageURL       *string    `json:"imageUrl"`
	CustomLocation *Location  `json:"customLocation"`
	User           users.User `json:"user"`
	Place          Place      `json:"place"`
	PostID         PostID     `json:"postId" validate:"required"`
	Category       string     `json:"category"`
	Content        string     `json:"content"`
	LikeCount      int        `json:"likeCount"`
	Liked          bool       `json:"liked"`
}

// Equal reports structural equality. Optional fields compare by value,
// timestamps by instant.
func (p Post) Equal(o Post) bool {
	return p.PostID == o.PostID &&
		p.Category == o.Category &&
		p.Content == o.Content &&
		p.LikeCount == o.LikeCount &&
		p.Liked == o.Liked &&
		p.CreatedAt.Equal(o.CreatedAt) &&
		p.User.Equal(o.User) &&
		p.Place == o.Place &&
		equalString(p.ImageURL, o.ImageURL) &&
		equalLocation(p.CustomLocation, o.CustomLocation)
}

// WithLikes returns a copy of p carrying the given viewer like state and
// server-reported like count.
func (p Post) WithLikes(liked bool, likeCount int) Post {
	p.Liked = liked
	p.LikeCount = likeCount
	return p
}

// Coordinate returns the location the post should be pinned at: the custom
// override when present, the place location otherwise.
func (p Post) Coordinate() Location {
	if p.CustomLocation != nil {
		return *p.CustomLocation
	}
	return p.Place.Location
}

// CreatePostRequest is the body of POST /posts/.
// Either PlaceID (existing place) or Place (new place) must be set.
type CreatePostRequest struct {
	PlaceID        *string                  `json:"placeId" validate:"required_without=Place"`
	Place          *MaybeCreatePlaceRequest `json:"place" validate:"required_without=PlaceID"`
	CustomLocation *Location                `json:"customLocation"`
	ImageID        *string                  `json:"imageId"`
	Category       string                   `json:"category"`
	Content        string                   `json:"content" validate:"max=2000"`
}

// ImageUploadResponse is returned by POST /images. The id goes into
// CreatePostRequest.ImageID.
type ImageUploadResponse struct {
	ImageID string `json:"imageId" validate:"required"`
}

// DeletePostResponse is returned by DELETE /posts/{id}
type DeletePostResponse struct {
	Deleted bool `json:"deleted"`
}

// LikePostResponse carries the authoritative like count after POST/DELETE /posts/{id}/likes
type LikePostResponse struct {
	Likes int `json:"likes"`
}

// ReportPostRequest is the body of POST /posts/{id}/report
type ReportPostRequest struct {
	Details string `json:"details" validate:"max=2000"`
}

// SimpleResponse is the generic {"success": bool} acknowledgement
type SimpleResponse struct {
	Success bool `json:"success"`
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalLocation(a, b *Location) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
