// package identity resolves the active user from a stored bearer token.
//
// Tokens are decoded locally and their signatures are not checked.
package identity

import (
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// Resolver extracts a [models.UserID] from a credential token.
type Resolver struct {
	parser *jwt.Parser
	now    func() time.Time
	leeway time.Duration
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLeeway tolerates clock skew when checking exp.
func WithLeeway(d time.Duration) Option {
	return func(r *Resolver) { r.leeway = d }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{parser: jwt.NewParser(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the token's subject, or ("", false) when the token is absent, malformed, subject-less or expired.
//
// It performs no I/O and never panics.
func (r *Resolver) Resolve(token string) (id models.UserID, ok bool) {
	defer func() {
		if recover() != nil {
			id, ok = "", false
		}
	}()

	claims, ok := r.claims(token)
	if !ok {
		return "", false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return "", false
	}
	if exp != nil && !r.now().Before(exp.Add(r.leeway)) {
		return "", false
	}

	sub := subject(claims["sub"])
	if sub == "" {
		return "", false
	}
	return models.UserID(sub), true
}

// Expiry returns the token's exp claim, if present and decodable.
func (r *Resolver) Expiry(token string) (time.Time, bool) {
	claims, ok := r.claims(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (r *Resolver) claims(token string) (jwt.MapClaims, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// subject accepts string and numeric sub claims; some backends issue integer user ids.
func subject(v any) string {
	switch sub := v.(type) {
	case string:
		return strings.TrimSpace(sub)
	case float64:
		return strconv.FormatFloat(sub, 'f', -1, 64)
	default:
		return ""
	}
}
