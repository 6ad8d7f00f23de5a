package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AccountIDFunc reports the authenticated account for a request, if any.
type AccountIDFunc func(c *fiber.Ctx) (int64, bool)

// RequestLogger logs one line per request and records request metrics.
// The Authorization header is never logged.
func RequestLogger(logger *zap.Logger, metrics *Metrics, accountID AccountIDFunc) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		route := c.Route().Path
		metrics.RecordRequest(route, c.Method(), status, elapsed)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
			zap.String("ip", c.IP()),
		}
		if accountID != nil {
			if id, ok := accountID(c); ok {
				fields = append(fields, zap.Int64("account_id", id))
			}
		}
		logger.Info("request", fields...)
		return err
	}
}
