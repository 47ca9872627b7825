package middleware

import (
	"net/http"

	"github.com/scribehub/transcriber/pkg/requestid"
)

// RequestID takes the id from the x-request-id header or generates one, and
// injects it into the request context so the service layer can correlate its
// operation logs with the HTTP request.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("x-request-id")
		if id == "" {
			id = requestid.Generate()
		}

		w.Header().Set("x-request-id", id)
		next.ServeHTTP(w, r.WithContext(requestid.ToContext(r.Context(), id)))
	})
}
