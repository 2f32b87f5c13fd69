package apiclient

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint is a path on the Jimo API plus optional query parameters.
// Name is a stable label used for logs and metrics; it never contains
// user-supplied values.
type Endpoint struct {
	err   error
	Query url.Values
	Name  string
	Path  string
}

// resolve joins the endpoint onto baseURL. The base must be absolute.
func (e Endpoint) resolve(baseURL string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	if e.Path == "" || !strings.HasPrefix(e.Path, "/") {
		return "", fmt.Errorf("%s: path %q must be absolute", e.Name, e.Path)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	raw := strings.TrimRight(base.String(), "/") + e.Path
	if len(e.Query) > 0 {
		raw += "?" + e.Query.Encode()
	}
	if _, err := url.Parse(raw); err != nil {
		return "", fmt.Errorf("%s: %w", e.Name, err)
	}
	return raw, nil
}

// segment builds "<prefix><escaped segment><suffix>". An empty segment yields
// an endpoint that fails to resolve rather than silently hitting the parent
// collection.
func segment(name, prefix, value, suffix string) Endpoint {
	if strings.TrimSpace(value) == "" {
		return Endpoint{Name: name, err: fmt.Errorf("%s: empty path segment", name)}
	}
	return Endpoint{Name: name, Path: prefix + url.PathEscape(value) + suffix}
}

// User endpoints

func MeEndpoint() Endpoint { return Endpoint{Name: "me", Path: "/me"} }

func CreateUserEndpoint() Endpoint { return Endpoint{Name: "create_user", Path: "/users/"} }

func UserEndpoint(username string) Endpoint {
	return segment("user", "/users/", username, "")
}

func PreferencesEndpoint(username string) Endpoint {
	return segment("preferences", "/users/", username, "/preferences")
}

// FeedEndpoint returns the feed page for username. A non-empty before asks
// for posts older than that post id.
func FeedEndpoint(username, before string) Endpoint {
	e := segment("feed", "/users/", username, "/feed")
	if before != "" && e.err == nil {
		e.Query = url.Values{"before": []string{before}}
	}
	return e
}

func UserPostsEndpoint(username string) Endpoint {
	return segment("user_posts", "/users/", username, "/posts")
}

func DiscoverEndpoint(username string) Endpoint {
	return segment("discover", "/users/", username, "/discover")
}

func FollowEndpoint(username string) Endpoint {
	return segment("follow", "/users/", username, "/follow")
}

func UnfollowEndpoint(username string) Endpoint {
	return segment("unfollow", "/users/", username, "/unfollow")
}

func FollowStatusEndpoint(username string) Endpoint {
	return segment("follow_status", "/users/", username, "/followStatus")
}

// Post endpoints

func CreatePostEndpoint() Endpoint { return Endpoint{Name: "create_post", Path: "/posts/"} }

func PostEndpoint(postID string) Endpoint {
	return segment("post", "/posts/", postID, "")
}

func PostLikesEndpoint(postID string) Endpoint {
	return segment("post_likes", "/posts/", postID, "/likes")
}

func ReportPostEndpoint(postID string) Endpoint {
	return segment("report_post", "/posts/", postID, "/report")
}

// Search and map

func SearchUsersEndpoint(query string) Endpoint {
	return Endpoint{Name: "search_users", Path: "/search/users", Query: url.Values{"q": []string{query}}}
}

func MapEndpoint() Endpoint { return Endpoint{Name: "map", Path: "/places/map"} }

// Images

func UploadImageEndpoint() Endpoint { return Endpoint{Name: "upload_image", Path: "/images"} }

func ProfilePictureEndpoint() Endpoint { return Endpoint{Name: "profile_picture", Path: "/me/photo"} }

// Onboarding and account

func WaitlistStatusEndpoint() Endpoint {
	return Endpoint{Name: "waitlist_status", Path: "/waitlist/status"}
}

func JoinWaitlistEndpoint() Endpoint { return Endpoint{Name: "join_waitlist", Path: "/waitlist/"} }

func InviteUserEndpoint() Endpoint { return Endpoint{Name: "invite_user", Path: "/waitlist/invites"} }

func ContactsEndpoint(username string) Endpoint {
	return segment("contacts", "/users/", username, "/contacts")
}

func NotificationTokenEndpoint() Endpoint {
	return Endpoint{Name: "notification_token", Path: "/notifications/token"}
}

func FeedbackEndpoint() Endpoint { return Endpoint{Name: "feedback", Path: "/feedback/"} }
