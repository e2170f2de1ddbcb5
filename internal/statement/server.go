package statement

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Server handles HTTP requests for statements.
type Server struct {
	service   *Service
	basicAuth BasicAuth
	ownerID   string
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a Server with a default mux. ownerID scopes every
// request; this service runs single-tenant behind the finance app.
func NewServer(service *Service, basicAuth BasicAuth, ownerID string) *Server {
	return NewServerWithMux(service, basicAuth, ownerID, http.NewServeMux())
}

// NewServerWithMux creates a Server with a custom mux for testing.
func NewServerWithMux(service *Service, basicAuth BasicAuth, ownerID string, mux *http.ServeMux) *Server {
	if ownerID == "" {
		ownerID = "default"
	}
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		ownerID:   ownerID,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials.
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			s.setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Statement Import"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response.
func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux. Routes must
// be registered from most specific to least specific to avoid conflicts.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/statements/{id}/annotate", s.requireAuth(s.handleAnnotateStatement))
	s.mux.HandleFunc("POST /api/statements/{id}/import", s.requireAuth(s.handleImportStatement))
	s.mux.HandleFunc("POST /api/statements/{id}/cancel", s.requireAuth(s.handleCancelStatement))
	s.mux.HandleFunc("GET /api/statements/{id}", s.requireAuth(s.handleGetStatement))
	s.mux.HandleFunc("GET /api/statements", s.requireAuth(s.handleListStatements))
	s.mux.HandleFunc("POST /api/statements", s.requireAuth(s.handleUploadStatement))
	s.mux.HandleFunc("POST /api/cards", s.requireAuth(s.handleCreateCreditCard))
	s.mux.HandleFunc("POST /api/categories", s.requireAuth(s.handleCreateCategory))
	s.mux.HandleFunc("OPTIONS /", s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {}))
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP dispatches to the server's mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
