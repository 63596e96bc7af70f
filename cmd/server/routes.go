package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)

	r.HandleFunc("/api/detect", s.handleDetectFile).Methods(http.MethodPost)
	r.HandleFunc("/api/detect/youtube", s.handleDetectYouTube).Methods(http.MethodPost)
	r.HandleFunc("/api/detect/status/{id}", s.handleJobStatus).Methods(http.MethodGet)

	r.HandleFunc("/api/results", s.handleListResults).Methods(http.MethodGet)
	r.HandleFunc("/api/results/{id}", s.handleGetResult).Methods(http.MethodGet)
	r.HandleFunc("/api/results/{id}", s.handleDeleteResult).Methods(http.MethodDelete)

	r.HandleFunc("/api/files/{name}", s.handleDeleteFile).Methods(http.MethodDelete)

	r.Use(s.loggingMiddleware)

	return corsMiddleware(allowedOrigins)(r)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs all HTTP requests with their response status
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.log.Infof("%s %s -> %d", r.Method, r.URL.Path, wrapped.statusCode)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (s *Server) Start(allowedOrigins []string) error {
	handler := s.setupRoutes(allowedOrigins)

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Infof("CopyScan server starting on %s", addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	s.log.Infof("   Uploads:  %s", s.config.UploadDir)
	s.log.Infof("   Oracle:   %s", s.config.ACRHost)
	s.log.Infof("   CORS:     %s", strings.Join(allowedOrigins, ", "))

	return http.ListenAndServe(addr, handler)
}
