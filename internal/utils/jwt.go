package utils // package utils provides helpers for token issuing and credential hashing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of every session token unless TOKEN_TTL
// overrides it. Login, registration and re-authentication share it.
const DefaultTokenTTL = 30 * 24 * time.Hour

var (
	// ErrInvalidToken is returned for malformed, badly signed or expired
	// tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is a more specific ErrInvalidToken.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// Claims is the payload of a session token. The user id always travels in
// the registered "sub" claim; Username is informational.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string { return c.Subject }

// AccessToken represents a signed JWT along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// TokenIssuer mints and verifies HS256 session tokens with a process-wide
// secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer for the given secret. An empty secret is
// rejected so that a misconfigured process fails at startup.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime applied by Issue.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a token for userID with the configured lifetime.
func (t *TokenIssuer) Issue(userID, username string) (AccessToken, error) {
	return t.IssueWithTTL(userID, username, t.ttl)
}

// IssueWithTTL signs a token for userID that expires ttl from now.
func (t *TokenIssuer) IssueWithTTL(userID, username string, ttl time.Duration) (AccessToken, error) {
	if userID == "" {
		return AccessToken{}, errors.New("empty user id")
	}
	now := t.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify checks signature and expiry of raw and returns its claims. A token
// wrapped in quote characters (as some clients store it) is unwrapped first.
func (t *TokenIssuer) Verify(raw string) (*Claims, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"'`)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
