package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
)

// Recover turns a panic in a handler into a JSON 500 so clients never see a
// dropped connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("panic [%s] %s %s: %v\n%s", GetRequestID(r), r.Method, r.URL.Path, rec, debug.Stack())
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "⚠️ Server error", r)
		}()
		next.ServeHTTP(w, r)
	})
}
