package devserver

import (
	"bytes"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpack/internal/logger"
)

// BuildMiddleware serves bundle outputs from memory with permissive CORS and
// gzip. Requests made before the first build wait for it.
func BuildMiddleware(store *Memory, log zerolog.Logger) http.Handler {
	serve := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		if err := store.Wait(r.Context()); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		f, ok := store.Get(name)
		if !ok {
			http.NotFound(w, r)
			return
		}

		if f.Hash != "" {
			w.Header().Set("ETag", `"`+f.Hash+`"`)
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(f.Contents))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"X-Requested-With"},
	})

	return logger.NewHTTPRequests(log).Wrap(c.Handler(gzhttp.GzipHandler(serve)))
}
