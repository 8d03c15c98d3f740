// Package identity verifies bearer tokens issued by the identity provider and
// talks to its HTTP API for the OAuth PKCE login flow and admin email lookups.
package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
)

// ErrUnauthenticated covers every reason a bearer token is not accepted.
var ErrUnauthenticated = errors.New("identity: unauthenticated")

// Claims are the provider's access token claims that the gateway reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 access tokens against the provider's signing secret.
// Expiry is required and checked; the audience is not.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier returns a verifier for secret. With an empty secret every
// token is rejected.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Verify parses token and returns the principal it names.
func (v *Verifier) Verify(token string) (domain.Principal, error) {
	if len(v.secret) == 0 || token == "" {
		return domain.Principal{}, ErrUnauthenticated
	}
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Principal{}, ErrUnauthenticated
	}
	if claims.Subject == "" {
		return domain.Principal{}, ErrUnauthenticated
	}
	return domain.Principal{ID: claims.Subject, Email: claims.Email}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// SafeNext returns next when it is a same-origin relative path, else "/".
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n") {
		return "/"
	}
	return next
}
