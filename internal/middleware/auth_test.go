package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGuard(t *testing.T, secret string, setup func(r *http.Request)) (string, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var subject string
	h := JWTGuard(secret)(func(c echo.Context) error {
		subject, _ = GetSubject(c)
		return nil
	})
	return subject, h(c)
}

func TestJWTGuard(t *testing.T) {
	t.Parallel()

	const secret = "s3cret"
	valid, err := GenerateJWT(secret, "desk-1", "trader", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateJWT(secret, "desk-1", "trader", -time.Hour)
	require.NoError(t, err)
	foreign, err := GenerateJWT("other", "desk-1", "trader", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name        string
		secret      string
		setup       func(r *http.Request)
		wantSubject string
		wantCode    int
	}{
		{name: "disabled without secret", secret: ""},
		{
			name:        "bearer header",
			secret:      secret,
			setup:       func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) },
			wantSubject: "desk-1",
		},
		{
			name:        "cookie",
			secret:      secret,
			setup:       func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: valid}) },
			wantSubject: "desk-1",
		},
		{name: "missing token", secret: secret, wantCode: http.StatusUnauthorized},
		{
			name:     "bad scheme",
			secret:   secret,
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Token "+valid) },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "expired",
			secret:   secret,
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong secret",
			secret:   secret,
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+foreign) },
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			subject, err := runGuard(t, tt.secret, tt.setup)
			if tt.wantCode != 0 {
				var he *echo.HTTPError
				require.ErrorAs(t, err, &he)
				assert.Equal(t, tt.wantCode, he.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, subject)
		})
	}
}
