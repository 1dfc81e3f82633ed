package identity

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/evanschultz/flare/internal/domain"
)

var (
	testKey = []byte("0123456789abcdef0123456789abcdef")
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func testConfig() Config {
	return Config{
		Issuer:     "flare-test",
		Audience:   "flare-api",
		SigningKey: testKey,
		TTL:        time.Hour,
		Now:        func() time.Time { return testNow },
	}
}

func TestIssueAndAuthenticateRoundTrip(t *testing.T) {
	issuer, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	verifier, err := NewVerifier(testConfig())
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	actor, err := domain.NewActor("u-1", "Ada", []domain.Role{domain.RoleParticipant, domain.RoleOrganizer})
	if err != nil {
		t.Fatalf("NewActor() error = %v", err)
	}
	token, err := issuer.Issue(actor)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	got, err := verifier.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.UserID != "u-1" || got.DisplayName != "Ada" {
		t.Fatalf("unexpected actor %#v", got)
	}
	if !got.HasRole(domain.RoleOrganizer) || !got.HasRole(domain.RoleParticipant) || got.HasRole(domain.RoleAdmin) {
		t.Fatalf("unexpected roles %#v", got.Roles)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	issuer, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	actor, _ := domain.NewActor("u-1", "", []domain.Role{domain.RoleAdmin})
	valid, err := issuer.Issue(actor)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	expiredCfg := testConfig()
	expiredCfg.Now = func() time.Time { return testNow.Add(2 * time.Hour) }
	otherAudience := testConfig()
	otherAudience.Audience = "someone-else"
	otherKey := testConfig()
	otherKey.SigningKey = []byte("ffffffffffffffffffffffffffffffff")

	unknownRole := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-2",
			Issuer:    "flare-test",
			Audience:  jwt.ClaimStrings{"flare-api"},
			IssuedAt:  jwt.NewNumericDate(testNow),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
		Roles: []string{"superuser"},
	})
	unknownRoleToken, err := unknownRole.SignedString(testKey)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	noneToken := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-3", ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour))},
		Roles:            []string{"admin"},
	})
	unsigned, err := noneToken.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	cases := []struct {
		name   string
		cfg    Config
		token  string
		reason string
	}{
		{name: "empty", cfg: testConfig(), token: " ", reason: "required"},
		{name: "expired", cfg: expiredCfg, token: valid, reason: "expired"},
		{name: "audience", cfg: otherAudience, token: valid, reason: "audience"},
		{name: "signature", cfg: otherKey, token: valid, reason: "signature"},
		{name: "garbage", cfg: testConfig(), token: "not-a-jwt", reason: "malformed"},
		{name: "unknown role", cfg: testConfig(), token: unknownRoleToken, reason: "role"},
		{name: "alg none", cfg: testConfig(), token: unsigned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier, err := NewVerifier(tc.cfg)
			if err != nil {
				t.Fatalf("NewVerifier() error = %v", err)
			}
			_, err = verifier.Authenticate(tc.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
			if tc.reason != "" && !strings.Contains(err.Error(), tc.reason) {
				t.Fatalf("expected reason containing %q, got %v", tc.reason, err)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if _, err := NewVerifier(Config{SigningKey: []byte("short")}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewIssuer(Config{SigningKey: testKey, TTL: -time.Second}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		want   string
		ok     bool
	}{
		"bearer":    {header: "Bearer abc.def", want: "abc.def", ok: true},
		"lowercase": {header: "bearer   xyz ", want: "xyz", ok: true},
		"basic":     {header: "Basic Zm9v", ok: false},
		"empty":     {header: "", ok: false},
		"no token":  {header: "Bearer ", ok: false},
	}
	for name, tc := range cases {
		got, ok := BearerToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: BearerToken(%q) = %q, %v; want %q, %v", name, tc.header, got, ok, tc.want, tc.ok)
		}
	}
}
