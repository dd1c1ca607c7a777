package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies failures of remote calls.
type Kind int

const (
	KindRemoteService Kind = iota
	KindAuthentication
	KindNotFound
	KindTimeout
	KindUnexpectedResponse
	KindQuota
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not found"
	case KindTimeout:
		return "timeout"
	case KindUnexpectedResponse:
		return "unexpected response"
	case KindQuota:
		return "quota"
	default:
		return "remote service"
	}
}

// Sentinel values for errors.Is checks; only Kind is compared.
var (
	ErrAuthentication     = &Error{Kind: KindAuthentication}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrRemoteService      = &Error{Kind: KindRemoteService}
	ErrUnexpectedResponse = &Error{Kind: KindUnexpectedResponse}
	ErrQuota              = &Error{Kind: KindQuota}
)

// Error describes a failed remote operation.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d", e.Status)
		if e.Code != "" {
			b.WriteString(" ")
			b.WriteString(e.Code)
		}
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the Kind of err, KindRemoteService when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRemoteService
}

// KindForStatus maps an HTTP status code to a Kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthentication
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindQuota
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return KindTimeout
	default:
		return KindRemoteService
	}
}

type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// FromResponse builds an error from a non-2xx response status and body.
// Recognised bodies: {"error":{"code","message"}}, {"error":"..."} and {"message","code"}.
func FromResponse(op string, status int, body []byte) *Error {
	e := &Error{Kind: KindForStatus(status), Op: op, Status: status}
	var payload errorBody
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Error) > 0 {
			var detail errorDetail
			if err := json.Unmarshal(payload.Error, &detail); err == nil {
				e.Code = detail.Code
				if e.Code == "" {
					e.Code = detail.Type
				}
				e.Message = detail.Message
			} else {
				var text string
				if err := json.Unmarshal(payload.Error, &text); err == nil {
					e.Message = text
				}
			}
		}
		if e.Message == "" {
			e.Message = payload.Message
		}
		if e.Code == "" && len(payload.Code) > 0 {
			var code string
			if err := json.Unmarshal(payload.Code, &code); err == nil {
				e.Code = code
			} else {
				e.Code = string(payload.Code)
			}
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
	}
	if e.Kind == KindRemoteService && mentionsQuota(e.Message) {
		e.Kind = KindQuota
	}
	return e
}

func mentionsQuota(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "limit exceeded")
}

// FromTransport classifies a failed round trip; deadlines map to KindTimeout.
func FromTransport(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(KindTimeout, op, err)
	}
	return Wrap(KindRemoteService, op, err)
}

// StatusOf returns the HTTP status an error should be served with.
func StatusOf(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindQuota:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUnexpectedResponse:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
