// Package static serves files from an explicit root directory with the
// permissive response headers a local development server needs.
package static

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrEntryFileMissing reports that the serving root lacks its entry file.
var ErrEntryFileMissing = errors.New("entry file missing")

// CheckEntryFile verifies that root contains a regular file with the given
// name. A directory of the same name does not count.
func CheckEntryFile(root, name string) error {
	info, err := os.Stat(filepath.Join(root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s not found in %s", ErrEntryFileMissing, name, root)
		}
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s in %s is a directory", ErrEntryFileMissing, name, root)
	}
	return nil
}

// NewHandler returns a file server rooted at the given directory. Header
// injection and OPTIONS handling are layered on separately so the serving
// core stays a plain http.FileServer.
func NewHandler(root string) http.Handler {
	fileServer := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// FileServer answers /index.html requests with a redirect to the
		// directory; serve the directory form internally so the entry file
		// answers 200 at its own URL. Only rewrite when the file actually
		// exists, otherwise the directory form would answer with a listing
		// instead of a 404.
		if strings.HasSuffix(r.URL.Path, "/index.html") {
			target := filepath.Join(root, filepath.FromSlash(path.Clean(r.URL.Path)))
			info, err := os.Stat(target)
			switch {
			case err == nil && info.Mode().IsRegular():
				r = r.Clone(r.Context())
				r.URL.Path = strings.TrimSuffix(r.URL.Path, "index.html")
			case os.IsNotExist(err):
				http.NotFound(w, r)
				return
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}

// WithHeaders injects the permissive CORS header set on every response and
// disables caching for script and stylesheet responses.
func WithHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if strings.HasSuffix(r.URL.Path, ".js") || strings.HasSuffix(r.URL.Path, ".css") {
			h.Set("Cache-Control", "no-cache")
		}

		next.ServeHTTP(w, r)
	})
}

// WithOptionsShortCircuit answers every OPTIONS request with 200 and an
// empty body before file resolution runs.
func WithOptionsShortCircuit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
