package gateway

import "net/http"

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /session/new", limitBody(rateLimited(s.handleCreateSession, s.limiter, s.log)))
	mux.HandleFunc("GET /session/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /session/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /message", limitBody(s.handleMessage))
	mux.HandleFunc("POST /livekit/token", limitBody(rateLimited(s.handleToken, s.limiter, s.log)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// limitBody caps request bodies at maxRequestBody.
func limitBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next(w, r)
	}
}
