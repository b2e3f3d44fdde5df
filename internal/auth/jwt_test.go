package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"clevertap-sync/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "issuer",
		JWTAudience:    "aud",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.IssueAccess(now, "crm-trigger", "integrator")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "crm-trigger" || claims.Role != "integrator" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.Verify(tok, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerifyRejectsForeignIssuerAndSecret(t *testing.T) {
	now := time.Now()
	a, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "a"})
	b, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "b"})
	c, _ := NewManager(config.AuthConfig{JWTSecret: "other", JWTIssuer: "a"})

	tok, err := a.IssueAccess(now, "u", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Verify(tok, now); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
	if _, err := c.Verify(tok, now); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret"})
	tok, _ := m.IssueAccess(time.Now(), "u1", "auditor")

	r := gin.New()
	r.GET("/x", RequireAccessToken(m), func(c *gin.Context) {
		id, _ := IdentityFrom(c.Request.Context())
		c.String(http.StatusOK, id.Subject+"/"+id.Role)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "u1/auditor" {
		t.Fatalf("expected 200 u1/auditor, got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":     "abc",
		"bearer  abc ":   "abc",
		"BEARER abc":     "abc",
		"Basic abc":      "",
		"Bearer":         "",
		"Bearer   ":      "",
		"":               "",
		"Bearerabc":      "",
		"Token Bearer x": "",
	}
	for in, want := range cases {
		got, ok := bearerToken(in)
		if got != want || ok != (want != "") {
			t.Fatalf("bearerToken(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
}

func TestIdentityFromRequiresSubjectAndRole(t *testing.T) {
	ctx := context.Background()
	if _, ok := IdentityFrom(ctx); ok {
		t.Fatalf("expected no identity on empty context")
	}
	if _, ok := IdentityFrom(WithIdentity(ctx, Identity{Subject: "svc"})); ok {
		t.Fatalf("expected identity without role to be rejected")
	}
	id, ok := IdentityFrom(WithIdentity(ctx, Identity{Subject: "svc", Role: "admin"}))
	if !ok || id.Subject != "svc" || id.Role != "admin" {
		t.Fatalf("unexpected identity: %+v %v", id, ok)
	}
}

func TestVerifyRejectsTokenWithoutSubject(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret"})
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Role:      "admin",
		TokenType: TokenTypeAccess,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected token without subject to be rejected")
	}
}
