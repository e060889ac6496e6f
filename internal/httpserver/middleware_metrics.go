package httpserver

import (
	"net/http"

	apierrors "github.com/addispay/wallet-server/internal/errors"
)

// adminMetricsAuth is middleware that protects the /metrics endpoint with an API key.
// If no API key is configured, the endpoint is accessible without authentication.
// If an API key is configured, requests must include an "Authorization: Bearer {key}" header.
func adminMetricsAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// If no API key is configured, allow access without authentication
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Check Authorization header
			authHeader := r.Header.Get("Authorization")
			expectedHeader := "Bearer " + apiKey

			if authHeader != expectedHeader {
				apierrors.WriteSimpleError(w, apierrors.ErrUnauthorized, "invalid or missing admin API key")
				return
			}

			// API key is valid - proceed
			next.ServeHTTP(w, r)
		})
	}
}
