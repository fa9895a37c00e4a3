package http_api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// requestID makes sure every request and response carries an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Next()
	}
}

func (s *HTTPServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDHeader))
	}
}

// rateLimit limits requests per client IP and route using Redis if available.
// Without Redis, or when Redis fails, requests pass.
func (s *HTTPServer) rateLimit(route string) gin.HandlerFunc {
	maxPerMin := s.verifyLimit
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *gin.Context) {
		if s.cache == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "actgate:rl:" + route + ":" + c.ClientIP()
		cnt, err := s.cache.Incr(ctx, key).Result()
		if err != nil {
			s.logger.Warn("Rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if cnt == 1 {
			if err := s.cache.Expire(ctx, key, time.Minute).Err(); err != nil {
				s.logger.Warn("Failed to set rate limit window", "key", key, "error", err)
			}
		}
		if cnt > int64(maxPerMin) {
			s.ensureWindow(ctx, key)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Too many verification attempts, try again later",
			})
			return
		}
		c.Next()
	}
}

// ensureWindow gives a blocked key an expiry when the one set on its first hit was lost,
// so a client is never locked out for good.
func (s *HTTPServer) ensureWindow(ctx context.Context, key string) {
	ttl, err := s.cache.TTL(ctx, key).Result()
	if err != nil || ttl >= 0 {
		return
	}
	if err := s.cache.Expire(ctx, key, time.Minute).Err(); err != nil {
		s.logger.Warn("Failed to set rate limit window", "key", key, "error", err)
	}
}
