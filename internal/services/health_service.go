package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/you/mcmarket/internal/infrastructure/database"
)

// HealthReport is the body of GET /health
type HealthReport struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// Healthy reports whether the service can answer requests; Redis is optional
func (r *HealthReport) Healthy() bool { return r.Status != "down" }

type HealthService struct {
	db    *gorm.DB
	redis *database.RedisClient
}

func NewHealthService(db *gorm.DB, redis *database.RedisClient) *HealthService {
	return &HealthService{db: db, redis: redis}
}

// Check probes the database and Redis with a short deadline each
func (s *HealthService) Check(ctx context.Context) *HealthReport {
	report := &HealthReport{Status: "ok", Checks: map[string]string{}, Timestamp: time.Now().UTC()}

	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := database.Ping(dbCtx, s.db); err != nil {
		report.Checks["database"] = "down: " + err.Error()
		report.Status = "down"
	} else {
		report.Checks["database"] = "up"
	}

	if s.redis == nil {
		report.Checks["redis"] = "disabled"
		return report
	}
	redisCtx, cancelRedis := context.WithTimeout(ctx, time.Second)
	defer cancelRedis()
	if err := s.redis.Ping(redisCtx); err != nil {
		report.Checks["redis"] = "down: " + err.Error()
		if report.Status == "ok" {
			report.Status = "degraded"
		}
	} else {
		report.Checks["redis"] = "up"
	}
	return report
}
