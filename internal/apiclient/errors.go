package apiclient

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Every failed call returns an error matching exactly one of these sentinels
// (or ErrRequest via *RequestError). Use errors.Is or KindOf to classify.
var (
	// ErrEndpoint indicates the request URL could not be built
	ErrEndpoint = errors.New("invalid endpoint")

	// ErrEncode indicates the request body could not be serialized
	ErrEncode = errors.New("failed to encode request body")

	// ErrDecode indicates a 2xx response body did not match the expected shape
	ErrDecode = errors.New("failed to decode response")

	// ErrAuth indicates nobody is signed in, or the server answered 401/403
	ErrAuth = errors.New("not authenticated")

	// ErrToken indicates the credential provider could not produce a token
	ErrToken = errors.New("failed to obtain auth token")

	// ErrNoResponse indicates the request never produced an HTTP response
	// (transport failure, timeout, cancellation)
	ErrNoResponse = errors.New("no response from server")

	// ErrNotFound indicates HTTP 404
	ErrNotFound = errors.New("not found")

	// ErrServer indicates HTTP 5xx
	ErrServer = errors.New("server error")

	// ErrUnknown indicates any other non-2xx status
	ErrUnknown = errors.New("unknown error")

	// ErrRequest is matched by *RequestError
	ErrRequest = errors.New("request rejected")
)

// RequestError is a rejected request (HTTP 400, or a draft that failed local
// validation). Fields maps field name to message and is nil when the server
// body was not a flat string map.
type RequestError struct {
	Fields map[string]string
}

func (e *RequestError) Error() string {
	if len(e.Fields) == 0 {
		return ErrRequest.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrRequest.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrRequest) match any *RequestError
func (e *RequestError) Is(target error) bool {
	return target == ErrRequest
}

// Kind is the taxonomy member of an error
type Kind int

const (
	KindNone Kind = iota
	KindRequest
	KindEndpoint
	KindEncode
	KindDecode
	KindAuth
	KindToken
	KindNoResponse
	KindNotFound
	KindServer
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindRequest:
		return "request_error"
	case KindEndpoint:
		return "endpoint_error"
	case KindEncode:
		return "encode_error"
	case KindDecode:
		return "decode_error"
	case KindAuth:
		return "auth_error"
	case KindToken:
		return "token_error"
	case KindNoResponse:
		return "no_response"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server_error"
	default:
		return "unknown_error"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrRequest, KindRequest},
	{ErrEndpoint, KindEndpoint},
	{ErrEncode, KindEncode},
	{ErrDecode, KindDecode},
	{ErrAuth, KindAuth},
	{ErrToken, KindToken},
	{ErrNoResponse, KindNoResponse},
	{ErrNotFound, KindNotFound},
	{ErrServer, KindServer},
	{ErrUnknown, KindUnknown},
}

// KindOf maps err onto the taxonomy. nil is KindNone; errors that did not
// come from this package are KindUnknown, except bare context errors which
// are KindNoResponse.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindNoResponse
	}
	return KindUnknown
}

// IsAuthError returns true if the error means the caller must sign in again
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrToken)
}

// RequestFields returns the per-field messages of a *RequestError in err's chain
func RequestFields(err error) (map[string]string, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Fields, true
	}
	return nil, false
}
