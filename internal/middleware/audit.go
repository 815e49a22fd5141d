package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/pkg/config"
	"github.com/noah-isme/course-cms-api/pkg/jobs"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditRecorder persists audit logs off the request path through a worker queue.
type AuditRecorder struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditRecorder builds the recorder and its backing queue. Call Start
// before serving traffic and Stop on shutdown.
func NewAuditRecorder(repo auditWriter, cfg config.AuditConfig, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := &AuditRecorder{logger: logger}
	recorder.queue = jobs.NewQueue("audit-log", func(ctx context.Context, job jobs.Job) error {
		log, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return fmt.Errorf("unexpected audit payload type %T", job.Payload)
		}
		return repo.CreateAuditLog(ctx, log)
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return recorder
}

// Start launches the queue workers.
func (r *AuditRecorder) Start(ctx context.Context) {
	if r == nil {
		return
	}
	r.queue.Start(ctx)
}

// Stop drains the queue workers.
func (r *AuditRecorder) Stop() {
	if r == nil {
		return
	}
	r.queue.Stop()
}

// Record enqueues a single audit entry without blocking the caller.
func (r *AuditRecorder) Record(log *models.AuditLog) {
	if r == nil {
		return
	}
	if err := r.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    log.Action,
		Payload: log,
	}); err != nil {
		r.logger.Warn("audit log dropped", zap.String("action", log.Action), zap.Error(err))
	}
}

// Audit records an audit log entry after the wrapped handler succeeds.
func Audit(recorder *AuditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := c.Get(ContextUserKey); ok {
			user := claims.(*models.JWTClaims)
			userID = &user.UserID
		}

		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		recorder.Record(&models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		})
	}
}
