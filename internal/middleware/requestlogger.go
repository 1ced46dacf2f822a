package middleware

import (
	"context"
	"log"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/aman-churiwal/gen-broker/internal/repository"
	"github.com/gin-gonic/gin"
)

// Buffered channel for async logging
var logChannel chan models.RequestLog

// Initializes the request logger
func InitRequestLogger(repo *repository.RequestLogRepository, bufferSize int) {
	logChannel = make(chan models.RequestLog, bufferSize)

	// Background worker batches inserts so request handling never waits on
	// the log table
	go func() {
		batch := make([]models.RequestLog, 0, 100)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case entry := <-logChannel:
				batch = append(batch, entry)

				if len(batch) >= 100 {
					insertBatch(repo, batch)
					batch = make([]models.RequestLog, 0, 100)
				}
			case <-ticker.C:
				if len(batch) > 0 {
					insertBatch(repo, batch)
					batch = make([]models.RequestLog, 0, 100)
				}
			}
		}
	}()
}

func insertBatch(repo *repository.RequestLogRepository, logs []models.RequestLog) {
	if len(logs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.CreateBatch(ctx, logs); err != nil {
		log.Printf("Failed to insert request logs: %v", err)
	}
}

// Logs all broker requests
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)

		entry := models.RequestLog{
			Timestamp:      start,
			ClientID:       c.GetString("client_id"),
			Tier:           c.GetString("tier"),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(duration.Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			ErrorCode:      c.GetString("error_code"),
		}

		if logChannel == nil {
			return
		}

		select {
		case logChannel <- entry:
			// Successfully queued
		default:
			log.Println("Request log channel full, skipping log entry")
		}
	}
}
