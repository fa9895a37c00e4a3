package auth

import (
	"net/http"
	"strings"
)

const (
	// TokenHeader carries the user token injected by the Whop app proxy.
	TokenHeader = "x-whop-user-token"
	// TokenQueryParam is the fallback for clients that cannot set headers.
	TokenQueryParam = "whop_user_token"
)

// CredentialExtractor pulls a raw credential out of a request.
// It returns false when the transport it handles carries nothing.
type CredentialExtractor interface {
	Name() string
	Extract(r *http.Request) (string, bool)
}

// HeaderExtractor reads a credential from a named header.
type HeaderExtractor struct {
	Header string
}

func (e HeaderExtractor) Name() string { return "header:" + e.Header }

func (e HeaderExtractor) Extract(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.Header.Get(e.Header))
	return v, v != ""
}

// BearerExtractor reads "Authorization: Bearer <token>".
type BearerExtractor struct{}

func (BearerExtractor) Name() string { return "bearer" }

func (BearerExtractor) Extract(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	v := strings.TrimSpace(h[7:])
	return v, v != ""
}

// QueryExtractor reads a credential from a query parameter.
type QueryExtractor struct {
	Param string
}

func (e QueryExtractor) Name() string { return "query:" + e.Param }

func (e QueryExtractor) Extract(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(e.Param))
	return v, v != ""
}

// DefaultExtractors is the transport order used in production.
func DefaultExtractors() []CredentialExtractor {
	return []CredentialExtractor{
		HeaderExtractor{Header: TokenHeader},
		BearerExtractor{},
		QueryExtractor{Param: TokenQueryParam},
	}
}
