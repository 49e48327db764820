package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultTokenTTL is the lifetime of an issued access token.
const DefaultTokenTTL = 30 * time.Minute

const clockLeeway = time.Minute

// ErrUnauthorized marks every failure to authenticate a caller.
var ErrUnauthorized = errors.New("unauthorized")

// Tokens issues and verifies HS256 access tokens whose subject is a username.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokens creates a token service. The secret must not be empty.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		// Time claims are checked below with leeway.
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation()),
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for subject.
func (t *Tokens) Issue(subject string) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and time claims of token and returns its subject.
func (t *Tokens) Verify(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, errBadAuthorization)
	}
	parsed, err := t.parser.Parse(token, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid claims", ErrUnauthorized)
	}

	now := t.now()
	if !claims.VerifyExpiresAt(now.Unix(), true) {
		return "", fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	skewed := now.Add(clockLeeway).Unix()
	if !claims.VerifyNotBefore(skewed, false) {
		return "", fmt.Errorf("%w: token not valid yet", ErrUnauthorized)
	}
	if !claims.VerifyIssuedAt(skewed, false) {
		return "", fmt.Errorf("%w: token used before issued", ErrUnauthorized)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	return sub, nil
}
