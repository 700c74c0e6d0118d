package api

import (
	"context"
	"time"
)

// HealthService answers liveness probes from the CLI and TUI.
type HealthService struct {
	profile   string
	startedAt time.Time
}

func NewHealthService(profile string) *HealthService {
	return &HealthService{profile: profile, startedAt: time.Now()}
}

func (s *HealthService) Ping(_ context.Context, _ *Empty) (*PingResponse, error) {
	return &PingResponse{
		Profile:   s.profile,
		StartedAt: s.startedAt,
		UptimeMs:  time.Since(s.startedAt).Milliseconds(),
	}, nil
}
