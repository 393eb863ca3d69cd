package middleware

import (
	"net/http"
	"time"

	"resights/pkg/requestcontext"
)

// RequestTime captures the time at the start of the request so audit events
// and logs written during the request share one timestamp.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
