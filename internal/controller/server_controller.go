package controller

import (
	"context"
	"time"
)

type healthChecker interface {
	Health() error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type queuePinger interface {
	Ping() error
}

type ServerController interface {
	DBHealth() error
	CacheHealth() error
	// RabbitHealth reports nil when the RabbitMQ transport is disabled
	RabbitHealth() error
	QueueHealth() error
	Online() string
}

type serverController struct {
	db     healthChecker
	cache  pinger
	rabbit healthChecker
	queue  queuePinger
}

func NewServer(db healthChecker, cache pinger, rabbit healthChecker, queue queuePinger) ServerController {
	return &serverController{
		db:     db,
		cache:  cache,
		rabbit: rabbit,
		queue:  queue,
	}
}

func (sc *serverController) Online() string {
	return "Online"
}

func (sc *serverController) DBHealth() error {
	return sc.db.Health()
}

func (sc *serverController) CacheHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sc.cache.Ping(ctx)
}

func (sc *serverController) RabbitHealth() error {
	if sc.rabbit == nil {
		return nil
	}
	return sc.rabbit.Health()
}

func (sc *serverController) QueueHealth() error {
	return sc.queue.Ping()
}
