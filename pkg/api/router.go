package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/bytebeam/internal/logger"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// Routes:
//   - GET    /                 - Static landing string
//   - GET    /health           - Liveness probe
//   - GET    /{ticket}         - Landing page, status JSON, status stream, or redirect
//   - DELETE /{ticket}         - Tear the ticket down
//   - POST   /{ticket}         - Mint a new ticket, or upgrade an existing one
//   - GET    /{ticket}/{name}  - Stream the payload (or upload landing for the key)
//   - POST   /{ticket}/{name}  - Multipart payload ingest
func NewRouter(h *Handler, version string, maxBodySize int64) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(serverHeader(version))
	r.Use(limitBody(maxBodySize))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, rootLanding)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/{ticket}", func(r chi.Router) {
		r.Get("/", h.GetDownload)
		r.Post("/", h.MakeUpload)
		r.Delete("/", h.RemoveFile)

		r.Get("/{name}", h.Download)
		r.Post("/{name}", h.Upload)
	})

	return r
}

// serverHeader stamps every response with the software identity, unless a
// handler already set one.
func serverHeader(version string) func(http.Handler) http.Handler {
	value := "ByteBeam/" + version
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if w.Header().Get("Server") == "" {
				w.Header().Set("Server", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limitBody caps the request body; a sender pushing past the cap gets cut
// off mid-stream.
func limitBody(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if max > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health"
}

// requestLogger logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("Request started",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyRemoteAddr, r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("Request completed", logArgs...)
		} else {
			logger.Info("Request completed", logArgs...)
		}
	})
}
