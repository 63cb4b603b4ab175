package middlewares

import (
	"net/http"
	"os"
	"time"

	"fixmycity-be/config"

	"github.com/gin-gonic/gin"
)

// ReportRateLimiter caps how many reports and merges a reporter may submit
// per day, tracked as a Redis counter with a 24h TTL.
func ReportRateLimiter(limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		reporterVal, _ := c.Get("reporter_id")
		reporterID, ok := reporterVal.(string)
		if !ok || reporterID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reporter identity missing"})
			c.Abort()
			return
		}

		ctx := config.Ctx
		queuePrefix := os.Getenv("REDIS_QUEUE_FOR_REPORT_LIMIT")
		if queuePrefix == "" {
			queuePrefix = "report-limit"
		}

		userKey := queuePrefix + ":" + reporterID

		count, err := config.RedisClient.Incr(ctx, userKey).Result()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "redis error incrementing count"})
			c.Abort()
			return
		}

		// Set TTL only for the first increment (when count = 1)
		if count == 1 {
			err = config.RedisClient.Expire(ctx, userKey, 24*time.Hour).Err()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "redis error setting TTL"})
				c.Abort()
				return
			}
		}

		if count > int64(limit) {
			retryAfter, _ := config.RedisClient.TTL(ctx, userKey).Result()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
