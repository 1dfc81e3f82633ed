// Package identity turns signed bearer tokens into workflow actors.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/evanschultz/flare/internal/domain"
)

// minSigningKeyBytes is the shortest accepted HS256 key.
const minSigningKeyBytes = 32

// ErrInvalidToken reports a missing, malformed, expired, or mismatched token.
var ErrInvalidToken = errors.New("invalid token")

// ErrNotConfigured reports a verifier or issuer without a usable key.
var ErrNotConfigured = errors.New("identity is not configured")

// Config defines how tokens are signed and verified.
type Config struct {
	Issuer     string
	Audience   string
	SigningKey []byte
	TTL        time.Duration
	Now        func() time.Time
}

// claims is the JWT payload carried by flare tokens.
type claims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles"`
}

// Validate checks that the configuration can sign and verify tokens.
func (c Config) Validate() error {
	if len(c.SigningKey) < minSigningKeyBytes {
		return fmt.Errorf("%w: signing key must be at least %d bytes", ErrNotConfigured, minSigningKeyBytes)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: token ttl must be >= 0", ErrNotConfigured)
	}
	return nil
}

// now returns the configured clock.
func (c Config) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Issuer mints HS256 tokens for actors.
type Issuer struct {
	cfg Config
}

// NewIssuer constructs an issuer from cfg.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Issuer{cfg: cfg}, nil
}

// Issue signs a token for actor.
func (i *Issuer) Issue(actor domain.Actor) (string, error) {
	if !actor.Authenticated() {
		return "", fmt.Errorf("issue token: %w", domain.ErrInvalidUserID)
	}
	now := i.cfg.now().UTC()
	registered := jwt.RegisteredClaims{
		Subject:   actor.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
	}
	if i.cfg.Issuer != "" {
		registered.Issuer = i.cfg.Issuer
	}
	if i.cfg.Audience != "" {
		registered.Audience = jwt.ClaimStrings{i.cfg.Audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: registered,
		Name:             actor.DisplayName,
		Roles:            domain.RoleNames(actor.Roles),
	})
	signed, err := token.SignedString(i.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verifier validates tokens and resolves actors.
type Verifier struct {
	cfg Config
}

// NewVerifier constructs a verifier from cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg}, nil
}

// Authenticate verifies a raw token and returns the actor it names.
func (v *Verifier) Authenticate(raw string) (domain.Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Actor{}, fmt.Errorf("%w: token is required", ErrInvalidToken)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.cfg.now),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	var parsed claims
	if _, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.SigningKey, nil
	}, opts...); err != nil {
		return domain.Actor{}, mapJWTError(err)
	}

	roles, err := domain.ParseRoles(parsed.Roles)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	actor, err := domain.NewActor(parsed.Subject, parsed.Name, roles)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return actor, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// jwtReasons maps parser sentinels to short client-facing reasons, most specific first.
var jwtReasons = []struct {
	target error
	reason string
}{
	{jwt.ErrTokenExpired, "token expired"},
	{jwt.ErrTokenNotValidYet, "token not valid yet"},
	{jwt.ErrTokenInvalidIssuer, "issuer mismatch"},
	{jwt.ErrTokenInvalidAudience, "audience mismatch"},
	{jwt.ErrTokenSignatureInvalid, "signature invalid"},
	{jwt.ErrTokenMalformed, "token malformed"},
	{jwt.ErrTokenRequiredClaimMissing, "required claim missing"},
}

// mapJWTError folds jwt parser failures into ErrInvalidToken.
func mapJWTError(err error) error {
	for _, r := range jwtReasons {
		if errors.Is(err, r.target) {
			return fmt.Errorf("%w: %s", ErrInvalidToken, r.reason)
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}
