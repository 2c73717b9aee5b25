package api

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check, outside the auth gate so probes keep working
	s.echo.GET("/health", s.handleHealth)

	// WebSocket endpoint for live progress. It carries the same job data
	// the progress endpoint serves, so it sits behind the same gate.
	if s.hub != nil {
		if s.cfg.Auth.Enabled {
			s.echo.GET("/ws", s.hub.HandleWebSocket, s.basicAuthMiddleware())
		} else {
			s.echo.GET("/ws", s.hub.HandleWebSocket)
		}
	}

	// API v1 group
	api := s.echo.Group("/api/v1")
	if s.cfg.Auth.Enabled {
		api.Use(s.basicAuthMiddleware())
	}

	// Downloads
	api.POST("/info", s.handleInfo)
	api.POST("/download", s.handleDownload)
	api.GET("/progress/:id", s.handleProgress)
	api.DELETE("/download/:id", s.handleCancel)

	// Completed files
	api.GET("/downloads", s.handleListDownloads)
	api.GET("/file/:name", s.handleFile)

	// Tool maintenance
	api.GET("/ytdlp-version", s.handleToolVersion)
	api.POST("/update-ytdlp", s.handleToolUpdate)
}
