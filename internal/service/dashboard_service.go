// FILE: internal/service/dashboard_service.go
package service

import (
	"context"
	"time"

	"helmet-compliance-be/internal/config"
	"helmet-compliance-be/internal/dto"
)

type IDashboardService interface {
	GetStats(ctx context.Context) (*dto.DashboardStatsResponse, error)
	GetTheme(ctx context.Context) config.ThemeConfig
}

type dashboardService struct {
	latency time.Duration
	theme   config.ThemeConfig
	now     func() time.Time
}

func NewDashboardService(latency time.Duration, theme config.ThemeConfig) IDashboardService {
	return &dashboardService{latency: latency, theme: theme, now: time.Now}
}

// GetStats returns the fixed summary figures after the simulated load delay.
func (s *dashboardService) GetStats(ctx context.Context) (*dto.DashboardStatsResponse, error) {
	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return &dto.DashboardStatsResponse{
		TotalDetections: 1247,
		Violations:      89,
		ComplianceRate:  92.8,
		LastDetection:   s.now(),
	}, nil
}

func (s *dashboardService) GetTheme(ctx context.Context) config.ThemeConfig {
	return s.theme
}
