package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/identity", s.identity)
	s.router.POST("/verify", s.rateLimit("verify"), s.verify)
	s.router.GET("/act-price", s.actPrice)
}
