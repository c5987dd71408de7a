package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	if len(s.config.CORS.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.CORS.AllowedOrigins,
			AllowMethods:     s.config.CORS.AllowedMethods,
			AllowHeaders:     s.config.CORS.AllowedHeaders,
			AllowCredentials: s.config.CORS.AllowCredentials,
			MaxAge:           time.Duration(s.config.CORS.MaxAge) * time.Second,
		}))
	}

	r.GET("/health", s.healthHandler)
	r.GET("/ready", s.readyHandler)

	r.GET("/category-from-asin", s.categoryFromASINHandler)

	reports := r.Group("/reports")
	{
		reports.POST("", s.createReportHandler)
		reports.GET("", s.listReportsHandler)
		reports.GET("/:id", s.getReportHandler)
		reports.GET("/:id/events", s.reportEventsHandler)
	}

	return r
}
