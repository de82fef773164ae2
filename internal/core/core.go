package core

import (
	"context"
	"time"

	"relayconf/internal/storage/models"
)

// Engine is the external proxy engine. It is only ever told to start with an
// endpoint or to stop.
type Engine interface {
	Start(ctx context.Context, ep models.Endpoint) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// Status represents engine runtime status
type Status struct {
	Running   bool
	PID       int
	StartedAt time.Time
	Uptime    time.Duration
	Endpoint  models.Endpoint

	// Configuration the engine was started with, nil when stopped.
	Configuration *models.Configuration
}

// statusReporter is implemented by engines that know their process details.
type statusReporter interface {
	PID() int
	StartedAt() time.Time
}
