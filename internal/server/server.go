package server

import (
	"fmt"
	"net/http"
	"time"

	"demand/internal/config"
	"demand/internal/controller"
)

type Server struct {
	sc     controller.ServerController
	rc     controller.ReportController
	config config.Config
}

func New(config config.Config, sc controller.ServerController, rc controller.ReportController) *http.Server {
	server := Server{
		sc:     sc,
		rc:     rc,
		config: config,
	}

	// no WriteTimeout: the progress stream stays open until the report finishes
	return &http.Server{
		Addr:              fmt.Sprintf(":%v", config.Port),
		Handler:           server.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
