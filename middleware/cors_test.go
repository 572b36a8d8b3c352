package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	allowed := []string{"https://ledger.example.com", "https://admin.example.com"}

	testCases := []struct {
		name           string
		development    bool
		method         string
		origin         string
		expectedOrigin string
		expectedStatus int
	}{
		{"allowed origin", false, http.MethodGet, "https://admin.example.com", "https://admin.example.com", http.StatusTeapot},
		{"unknown origin in production", false, http.MethodGet, "https://evil.example.com", "https://ledger.example.com", http.StatusTeapot},
		{"unknown origin in development", true, http.MethodGet, "http://192.168.1.4:5173", "http://192.168.1.4:5173", http.StatusTeapot},
		{"no origin", false, http.MethodGet, "", "https://ledger.example.com", http.StatusTeapot},
		{"preflight", false, http.MethodOptions, "https://ledger.example.com", "https://ledger.example.com", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/cases", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rr := httptest.NewRecorder()
			CORS(allowed, tc.development)(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectedOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		})
	}
}

func TestCORSDefaultOrigins(t *testing.T) {
	rr := httptest.NewRecorder()
	CORS(nil, false)(http.NotFoundHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, defaultAllowedOrigins[0], rr.Header().Get("Access-Control-Allow-Origin"))
}
