package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading-quiz-service/internal/domain"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestTokenIssueAndParse(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)
	raw, err := tokens.Issue(domain.User{ID: "u1", Username: "alice", Role: domain.RoleStudent})
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleStudent, claims.Role)
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	issued := NewTokenService("secret", time.Minute)
	raw, err := issued.Issue(domain.User{ID: "u1", Role: domain.RoleTeacher})
	require.NoError(t, err)

	_, err = NewTokenService("other", time.Minute).Parse(raw)
	assert.Error(t, err)

	later := NewTokenService("secret", time.Minute)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Parse(raw)
	assert.Error(t, err)
}

func TestMiddlewareAndRoleGuard(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)
	handler := Middleware(tokens)(RequireRole(domain.RoleTeacher)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(claims.Username))
	})))

	teacher, err := tokens.Issue(domain.User{ID: "t1", Username: "mme-dupont", Role: domain.RoleTeacher})
	require.NoError(t, err)
	student, err := tokens.Issue(domain.User{ID: "s1", Username: "leo", Role: domain.RoleStudent})
	require.NoError(t, err)

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"missing token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"student forbidden", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+student) }, http.StatusForbidden},
		{"teacher via header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+teacher) }, http.StatusOK},
		{"teacher via query", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", teacher)
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
