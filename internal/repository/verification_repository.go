package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/docverify/internal/logging"
)

// VerificationLog is a persisted record of one processed request: the
// resolved extraction score, the biometric outcome and the final decision.
// SHA1Hash fingerprints the uploaded document for duplicate detection.
type VerificationLog struct {
	ID              uint      `gorm:"primaryKey"`
	RequestID       string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID          string    `gorm:"column:user_id;index;size:64"`
	Flow            string    `gorm:"column:flow;size:16"`
	DocumentType    string    `gorm:"column:document_type;size:16"`
	ExtractionScore float64   `gorm:"column:extraction_score"`
	FaceVerified    bool      `gorm:"column:face_verified"`
	FaceConfidence  float64   `gorm:"column:face_confidence"`
	FaceMethod      string    `gorm:"column:face_method;size:16"`
	LivenessScore   float64   `gorm:"column:liveness_score"`
	LivenessPassed  bool      `gorm:"column:liveness_passed"`
	OverallStatus   string    `gorm:"column:overall_status;size:16"`
	FailureReason   string    `gorm:"column:failure_reason;type:text"`
	Details         string    `gorm:"column:details;type:text"`
	SHA1Hash        string    `gorm:"column:sha1_hash;index;size:40"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (VerificationLog) TableName() string {
	return "verification_logs"
}

// MetricsAggregation is the raw aggregate computed from persisted logs.
type MetricsAggregation struct {
	TotalCount           int64
	VerifiedCount        int64
	AverageScore         float64
	AverageLivenessScore float64
}

// VerificationRepository provides persistence APIs for verification logs.
type VerificationRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewVerificationRepository creates a new repository instance.
func NewVerificationRepository(db *gorm.DB, logger *zap.Logger) *VerificationRepository {
	return &VerificationRepository{
		db:             db,
		logger:         logger.Named("verification_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *VerificationRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&VerificationLog{})
}

// SaveLog persists a verification log entry, retrying transient failures.
func (r *VerificationRepository) SaveLog(ctx context.Context, log *VerificationLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestIDAndUser retrieves a verification log matching the request and owner.
func (r *VerificationRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*VerificationLog, error) {
	var log VerificationLog
	if err := r.db.WithContext(ctx).First(&log, "request_id = ? AND user_id = ?", requestID, userID).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// FindDuplicatesByHash returns other requests by the same user that uploaded
// a byte-identical document.
func (r *VerificationRepository) FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*VerificationLog, error) {
	var logs []*VerificationLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND sha1_hash = ? AND request_id <> ?", userID, hash, excludeRequestID).
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateMetrics computes summary metrics over all persisted logs.
func (r *VerificationRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation

	row := r.db.WithContext(ctx).
		Model(&VerificationLog{}).
		Select(
			"COUNT(*) AS total," +
				"COALESCE(SUM(CASE WHEN overall_status = 'VERIFIED' THEN 1 ELSE 0 END), 0) AS verified," +
				"COALESCE(AVG(extraction_score), 0) AS avg_score," +
				"COALESCE(AVG(liveness_score), 0) AS avg_liveness",
		).
		Row()
	if err := row.Scan(&agg.TotalCount, &agg.VerifiedCount, &agg.AverageScore, &agg.AverageLivenessScore); err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *VerificationRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, requestID)

	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}

	var temporaryErr interface{ Temporary() bool }
	if errors.As(err, &temporaryErr) && temporaryErr.Temporary() {
		return true
	}

	return false
}
