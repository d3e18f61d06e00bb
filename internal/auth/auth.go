// Package auth validates the credential presented on the websocket upgrade
// request. It does not manage users; tokens are minted elsewhere (or by the
// token command for local testing).
package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Authentication errors.
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is the identity vouched for by a credential. An empty Identity
// means the request was accepted without one.
type Principal struct {
	Identity string
}

// Authenticator validates the credential on an upgrade request.
type Authenticator interface {
	Authenticate(r *http.Request) (Principal, error)
}

// Anonymous accepts every request. The identity announced in identify is
// trusted as-is.
type Anonymous struct{}

// Authenticate returns an empty Principal.
func (Anonymous) Authenticate(*http.Request) (Principal, error) {
	return Principal{}, nil
}

// Claims is the token body. Username is the identity the bearer may claim.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTAuthenticator accepts HS256 tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret []byte
	issuer string
}

// NewJWTAuthenticator creates an authenticator for secret. A non-empty
// issuer must match the token's iss claim.
func NewJWTAuthenticator(secret, issuer string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), issuer: issuer}
}

// Authenticate reads the token from the Authorization header, the token
// query parameter or the token cookie, in that order.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (Principal, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return Principal{}, ErrMissingToken
	}
	claims, err := a.Validate(raw)
	if err != nil {
		return Principal{}, err
	}
	return Principal{Identity: claims.Username}, nil
}

// Validate checks signature, expiry and issuer.
func (a *JWTAuthenticator) Validate(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Username) == "" {
		return nil, errors.Wrap(ErrInvalidToken, "username claim is empty")
	}
	return claims, nil
}

// IssueToken mints an HS256 token for identity valid for ttl.
func (a *JWTAuthenticator) IssueToken(identity string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(identity) == "" {
		return "", errors.New("identity is empty")
	}
	now := time.Now()
	claims := &Claims{
		Username: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}
