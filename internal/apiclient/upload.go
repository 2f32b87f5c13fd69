package apiclient

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

const (
	// MaxUploadSize is the largest image the API accepts
	MaxUploadSize = 8 << 20

	uploadField = "file"
)

// Upload is an image sent as multipart/form-data in the "file" field.
// Passing one as the body of Execute replaces JSON encoding.
type Upload struct {
	Data     []byte
	FileName string
}

// check rejects uploads the server would refuse, in the shape of a 400
func (u Upload) check() *RequestError {
	switch {
	case len(u.Data) == 0:
		return &RequestError{Fields: map[string]string{uploadField: "is required"}}
	case len(u.Data) > MaxUploadSize:
		return &RequestError{Fields: map[string]string{
			uploadField: "must be at most " + strconv.Itoa(MaxUploadSize) + " bytes",
		}}
	case !strings.HasPrefix(http.DetectContentType(u.Data), "image/"):
		return &RequestError{Fields: map[string]string{uploadField: "must be an image"}}
	}
	return nil
}

// encode returns the multipart body and its Content-Type header
func (u Upload) encode() ([]byte, string, error) {
	name := u.FileName
	if name == "" {
		name = "image"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, name))
	header.Set("Content-Type", http.DetectContentType(u.Data))

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(u.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
