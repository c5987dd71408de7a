package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) healthHandler(c *gin.Context) {
	c.String(http.StatusOK, s.sc.Online())
}

func (s *Server) readyHandler(c *gin.Context) {
	dbErr := s.sc.DBHealth()
	cacheErr := s.sc.CacheHealth()
	rabbitErr := s.sc.RabbitHealth()
	queueErr := s.sc.QueueHealth()

	res := gin.H{
		"database": dbErr == nil,
		"cache":    cacheErr == nil,
		"rabbit":   rabbitErr == nil,
		"queue":    queueErr == nil,
	}

	if dbErr != nil || cacheErr != nil || queueErr != nil {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}

	c.JSON(http.StatusOK, res)
}
