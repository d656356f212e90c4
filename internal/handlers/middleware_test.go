package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"alarmmate/internal/service"
)

func TestUserIdMiddleware(t *testing.T) {
	auth := &mockAuth{parseID: 7}
	s := &service.Service{
		Authorization: auth,
		Scheduler:     &mockScheduler{},
	}
	r := newTestRouter(s)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/alarm/next", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d, body=%s", w.Code, tc.want, w.Body.String())
			}
		})
	}

	if auth.lastParseToken != "good" {
		t.Fatalf("expected token forwarded to ParseToken, got %q", auth.lastParseToken)
	}

	// Expired token → 401
	auth.parseErr = errors.New("token is expired")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarm/next", nil)
	req.Header.Set("Authorization", "Bearer stale")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", w.Code)
	}
}
