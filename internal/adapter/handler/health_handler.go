package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker はサービスの健全性を確認するインターフェース。
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// HealthCheckFunc は関数を HealthChecker として扱うアダプター。
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Healthy(ctx context.Context) error { return f(ctx) }

// HealthzHandler は GET /healthz のハンドラー。
func HealthzHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	}
}

// ReadyzHandler は GET /readyz のハンドラー。
// database / redis / event_bus の接続確認を行う。nil の依存は disabled として扱う。
func ReadyzHandler(dbChecker, redisChecker, busChecker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		allReady := true
		for name, checker := range map[string]HealthChecker{
			"database":  dbChecker,
			"redis":     redisChecker,
			"event_bus": busChecker,
		} {
			if checker == nil {
				checks[name] = "disabled"
				continue
			}
			if err := checker.Healthy(ctx); err != nil {
				checks[name] = "error: " + err.Error()
				allReady = false
				continue
			}
			checks[name] = "ok"
		}

		status := "ready"
		statusCode := http.StatusOK
		if !allReady {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, gin.H{
			"status": status,
			"checks": checks,
		})
	}
}
