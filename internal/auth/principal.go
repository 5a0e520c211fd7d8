// Package auth resolves the caller's identity once, from the session token,
// so handlers never re-implement role lookups.
package auth

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Role values carried in session token claims.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

var (
	// ErrUnauthenticated is returned when no valid session token accompanies
	// the request.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Principal is the authenticated caller.
type Principal struct {
	ID    string
	Email string
	Role  string
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Resolver extracts the principal from an incoming request.
type Resolver interface {
	Resolve(r *http.Request) (*Principal, error)
}

type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HMAC-signed session tokens issued by the identity
// provider and maps their claims onto a Principal.
type JWTResolver struct {
	secret []byte
}

var _ Resolver = (*JWTResolver)(nil)

// NewJWTResolver creates a JWTResolver with the given signing secret.
func NewJWTResolver(secret []byte) *JWTResolver {
	return &JWTResolver{secret: secret}
}

// Resolve parses the Bearer token from the Authorization header. A missing,
// malformed, or expired token yields ErrUnauthenticated.
func (j *JWTResolver) Resolve(r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, ErrUnauthenticated
	}
	return j.ResolveToken(token)
}

// ResolveToken verifies a raw session token.
func (j *JWTResolver) ResolveToken(token string) (*Principal, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthenticated
	}
	if claims.Subject == "" {
		return nil, ErrUnauthenticated
	}

	role := claims.Role
	if role == "" {
		role = RoleCustomer
	}
	return &Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  role,
	}, nil
}
