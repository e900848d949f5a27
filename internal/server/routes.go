package server

import (
	"github.com/quotalens/quotalens/internal/server/handlers"
)

// registerRoutes mounts the health, version, metrics and quota routes.
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	if s.metrics {
		s.router.Get("/metrics", MetricsHandler)
	}

	quota := s.quota
	if quota == nil {
		quota = handlers.NewQuotaHandler(nil)
	}
	s.router.Get("/v1/quota", quota.Status)
	s.router.Post("/v1/quota/refresh", quota.Refresh)
}
