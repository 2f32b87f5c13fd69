package devserver

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Jimo/internal/core/posts"
	"Jimo/internal/core/users"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(t *testing.T, ts *httptest.Server, path, token, field string, data []byte) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestUploadImage(t *testing.T) {
	srv, ts := newTestServer(t, Config{})
	a := signUp(t, ts, "a@example.com")
	createProfile(t, ts, a.AccessToken, "gautam")

	status, data := upload(t, ts, "/images", a.AccessToken, "file", testPNG(t, 2160, 540))
	require.Equal(t, http.StatusOK, status, string(data))

	var out posts.ImageUploadResponse
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotEmpty(t, out.ImageID)

	// Stored as a JPEG that fits in 1080x1080
	stored, contentType, ok := srv.Image(out.ImageID)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", contentType)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1080, cfg.Width)
	assert.Equal(t, 270, cfg.Height)

	// Small images are not upscaled
	status, data = upload(t, ts, "/images", a.AccessToken, "file", testPNG(t, 40, 30))
	require.Equal(t, http.StatusOK, status, string(data))
	var small posts.ImageUploadResponse
	require.NoError(t, json.Unmarshal(data, &small))
	stored, _, ok = srv.Image(small.ImageID)
	require.True(t, ok)
	cfg, _, err = image.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)

	placeID := testPlace.PlaceID
	status, data = call(t, ts, http.MethodPost, "/posts/", a.AccessToken, posts.CreatePostRequest{
		PlaceID: &placeID, Content: "with photo", ImageID: &out.ImageID,
	})
	require.Equal(t, http.StatusOK, status, string(data))
	var post posts.Post
	require.NoError(t, json.Unmarshal(data, &post))
	require.NotNil(t, post.ImageURL)
	assert.Equal(t, "https://images.jimoapp.com/"+out.ImageID, *post.ImageURL)

	status, data = call(t, ts, http.MethodPost, "/posts/", a.AccessToken, posts.CreatePostRequest{
		PlaceID: &placeID, ImageID: strPtr("never-uploaded"),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(data), "imageId")
}

func TestUploadImage_Rejected(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	a := signUp(t, ts, "a@example.com")
	valid := testPNG(t, 4, 4)

	tests := []struct {
		name  string
		field string
		data  []byte
	}{
		{"wrong field", "photo", valid},
		{"empty", "file", nil},
		{"not an image", "file", []byte("just some text")},
		{"truncated image", "file", valid[:len(valid)/2]},
		{"too large", "file", append(append([]byte{}, valid...), make([]byte, maxImageSize)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := upload(t, ts, "/images", a.AccessToken, tt.field, tt.data)
			require.Equal(t, http.StatusBadRequest, status)
			var fields map[string]string
			require.NoError(t, json.Unmarshal(data, &fields))
			assert.Contains(t, fields, "file")
		})
	}

	status, _ := upload(t, ts, "/images", "", "file", valid)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUploadProfilePicture(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	a := signUp(t, ts, "a@example.com")

	photo := testPNG(t, 64, 64)
	status, _ := upload(t, ts, "/me/photo", a.AccessToken, "file", photo)
	assert.Equal(t, http.StatusNotFound, status)

	created := createProfile(t, ts, a.AccessToken, "gautam")
	assert.Nil(t, created.ProfilePictureURL)

	status, data := upload(t, ts, "/me/photo", a.AccessToken, "file", photo)
	require.Equal(t, http.StatusOK, status, string(data))
	var updated users.User
	require.NoError(t, json.Unmarshal(data, &updated))
	require.NotNil(t, updated.ProfilePictureURL)

	status, data = call(t, ts, http.MethodGet, "/me", a.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	var me users.User
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, updated.ProfilePictureURL, me.ProfilePictureURL)
}
