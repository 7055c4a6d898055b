package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
	"fintrack/internal/store/memory"
)

type profileRecorder struct {
	profiles []core.UserProfile
}

func (p *profileRecorder) PutProfile(_ context.Context, prof core.UserProfile) error {
	p.profiles = append(p.profiles, prof)
	return nil
}

func newService(t *testing.T) (*Service, *profileRecorder) {
	t.Helper()
	rec := &profileRecorder{}
	s := NewService(memory.New(), rec, []byte("test-secret"), time.Hour)
	s.cost = bcrypt.MinCost
	return s, rec
}

func TestSignUpAndLogin(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()

	u, err := s.SignUp(ctx, "  Ada@Example.com ", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)

	require.Len(t, rec.profiles, 1)
	assert.Equal(t, u.ID, rec.profiles[0].UserID)
	assert.Equal(t, core.ThemeLight, rec.profiles[0].Theme)

	got, err := s.Login(ctx, "ADA@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = s.Login(ctx, "ada@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUp_Validation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.SignUp(ctx, "not-an-email", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.True(t, core.IsValidation(err))

	_, err = s.SignUp(ctx, "a@b.co", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = s.SignUp(ctx, "a@b.co", "hunter22")
	require.NoError(t, err)
	_, err = s.SignUp(ctx, "A@B.co", "another1")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestTokens(t *testing.T) {
	s, _ := newService(t)
	u := User{ID: "user-1", Email: "u@example.com"}

	tok, exp, err := s.IssueToken(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	got, err := s.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, u, got)

	// Expired.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.ParseToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
	s.now = time.Now

	// Wrong secret.
	other := NewService(memory.New(), &profileRecorder{}, []byte("other"), time.Hour)
	_, err = other.ParseToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Unsigned token.
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.ParseToken(none)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestMiddleware(t *testing.T) {
	s, _ := newService(t)
	var seen User
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("page without session redirects", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expenses", nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("api without session is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("post without session is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expenses", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("cookie session passes user through", func(t *testing.T) {
		tok, _, err := s.IssueToken(User{ID: "u1", Email: "u1@example.com"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "u1", seen.ID)
	})

	t.Run("bearer header is accepted", func(t *testing.T) {
		tok, _, err := s.IssueToken(User{ID: "u2"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "u2", seen.ID)
	})
}
