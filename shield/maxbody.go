package shield

import "net/http"

// MaxUploadBody returns middleware that caps the request body size.
// Document uploads arrive as multipart/form-data or raw binary, so the
// limit applies to every request with a body; handlers see a
// *http.MaxBytesError once the cap is exceeded.
func MaxUploadBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength != 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
