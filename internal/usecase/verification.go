package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/docverify/internal/extract"
	"github.com/example/docverify/internal/face"
	"github.com/example/docverify/internal/imaging"
	"github.com/example/docverify/internal/logging"
	"github.com/example/docverify/internal/ocr"
	"github.com/example/docverify/internal/repository"
)

// State tracks a request through the pipeline. Transitions are strictly
// sequential with two early-exit terminal states; a single request is never
// retried once it reaches a terminal state.
type State string

// Pipeline states.
const (
	StateReceived        State = "RECEIVED"
	StatePreprocessed    State = "PREPROCESSED"
	StateOCRDone         State = "OCR_DONE"
	StateFaceExtracted   State = "FACE_EXTRACTED"
	StateFaceVerified    State = "FACE_VERIFIED"
	StateLivenessChecked State = "LIVENESS_CHECKED"
	StateDecided         State = "DECIDED"
	StateFailedDecode    State = "FAILED_DECODE"
	StateFailedNoFace    State = "FAILED_NO_FACE"
)

// Overall decision statuses.
const (
	StatusVerified = "VERIFIED"
	StatusFailed   = "FAILED"
)

// Flow labels recorded on persisted logs.
const (
	flowExtract = "extract"
	flowVerify  = "verify"
)

// Decision is the final composite outcome of a full verification request.
// Partial failures are folded in with an explicit reason rather than aborting
// the request.
type Decision struct {
	OCR            *extract.Result         `json:"ocr"`
	Face           face.VerificationResult `json:"face"`
	LivenessPassed bool                    `json:"liveness_passed"`
	OverallStatus  string                  `json:"overall_status"`
	State          State                   `json:"state"`
	FailureReason  string                  `json:"failure_reason,omitempty"`

	DocumentFace image.Image `json:"-"`
}

// Preprocessor generates recognition variants from raw document bytes.
type Preprocessor interface {
	Process(data []byte) (*imaging.Result, error)
}

// Aggregator collects recognition observations across variants.
type Aggregator interface {
	Aggregate(ctx context.Context, variants map[string]*image.Gray) *ocr.Bag
}

// Resolver turns an observation bag into a structured extraction result.
type Resolver interface {
	Resolve(bag *ocr.Bag) *extract.Result
}

// FaceExtractor locates a face in a document image.
type FaceExtractor interface {
	ExtractFromDocument(ctx context.Context, doc image.Image, docType face.DocumentType) *face.Observation
}

// FaceVerifier compares a document face against a second face image.
type FaceVerifier interface {
	Verify(ctx context.Context, docFace image.Image, docMeta *face.Observation, selfie image.Image) face.VerificationResult
}

// Liveness estimates whether a face image depicts a live subject.
type Liveness interface {
	Score(ctx context.Context, img image.Image) float64
	MinScore() float64
}

// VerificationRepository defines the persistence operations needed by the use case.
type VerificationRepository interface {
	SaveLog(ctx context.Context, log *repository.VerificationLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.VerificationLog, error)
	FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*repository.VerificationLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// VerificationUseCase sequences the document verification pipeline and owns
// persistence, caching and usage accounting around it.
type VerificationUseCase struct {
	repo          VerificationRepository
	cache         Cache
	preprocessor  Preprocessor
	aggregator    Aggregator
	resolver      Resolver
	faceExtractor FaceExtractor
	faceVerifier  FaceVerifier
	liveness      Liveness
	stats         *Stats
	logger        *zap.Logger

	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type cachedVerification struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	Flow      string    `json:"flow"`
	Score     float64   `json:"score"`
	Status    string    `json:"status"`
	Details   string    `json:"details"`
	Hash      string    `json:"sha1_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// DuplicateReport represents duplicate verification entries for a request.
type DuplicateReport struct {
	Request    *repository.VerificationLog
	Duplicates []*repository.VerificationLog
}

// NewVerificationUseCase constructs a new use case instance.
func NewVerificationUseCase(
	repo VerificationRepository,
	cache Cache,
	preprocessor Preprocessor,
	aggregator Aggregator,
	resolver Resolver,
	faceExtractor FaceExtractor,
	faceVerifier FaceVerifier,
	liveness Liveness,
	stats *Stats,
	logger *zap.Logger,
) *VerificationUseCase {
	return &VerificationUseCase{
		repo:           repo,
		cache:          cache,
		preprocessor:   preprocessor,
		aggregator:     aggregator,
		resolver:       resolver,
		faceExtractor:  faceExtractor,
		faceVerifier:   faceVerifier,
		liveness:       liveness,
		stats:          stats,
		logger:         logger.Named("verification_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// ExtractDocument runs the document-only flow: preprocess, aggregate
// recognition passes across variants and resolve fields. The only fatal
// error is an undecodable document.
func (uc *VerificationUseCase) ExtractDocument(ctx context.Context, userID string, docBytes []byte) (string, *extract.Result, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.extract_document", requestID)
	uc.stats.RecordRequest()

	pre, err := uc.preprocessor.Process(docBytes)
	if err != nil {
		opLogger.Error("document decode failed", zap.Error(err), zap.String("state", string(StateFailedDecode)))
		return "", nil, logging.NewOperationError("usecase.preprocess", requestID, err)
	}

	bag := uc.aggregator.Aggregate(ctx, pre.Variants)
	result := uc.resolver.Resolve(bag)
	uc.stats.RecordExtraction(result.ExtractionScore)

	log := &repository.VerificationLog{
		RequestID:       requestID,
		UserID:          userID,
		Flow:            flowExtract,
		ExtractionScore: result.ExtractionScore,
		OverallStatus:   StatusFailed,
		Details:         result.Summary,
		SHA1Hash:        hashBytes(docBytes),
		CreatedAt:       time.Now().UTC(),
	}
	if result.ExtractionScore > 0 {
		log.OverallStatus = StatusVerified
	}
	uc.persistAndCache(ctx, opLogger, log)

	return requestID, result, nil
}

// VerifyDocument runs the full flow: field extraction plus biometric
// comparison of the document photo against the selfie and liveness scoring.
// Decode errors are fatal; a missing document face short-circuits to a failed
// decision that still carries the extraction result.
func (uc *VerificationUseCase) VerifyDocument(ctx context.Context, userID string, docBytes, selfieBytes []byte, docType face.DocumentType) (string, *Decision, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.verify_document", requestID)
	uc.stats.RecordRequest()

	pre, err := uc.preprocessor.Process(docBytes)
	if err != nil {
		opLogger.Error("document decode failed", zap.Error(err), zap.String("state", string(StateFailedDecode)))
		return "", nil, logging.NewOperationError("usecase.preprocess", requestID, err)
	}
	selfie, err := imaging.Decode(selfieBytes)
	if err != nil {
		opLogger.Error("selfie decode failed", zap.Error(err), zap.String("state", string(StateFailedDecode)))
		return "", nil, logging.NewOperationError("usecase.decode_selfie", requestID, err)
	}

	bag := uc.aggregator.Aggregate(ctx, pre.Variants)
	ocrResult := uc.resolver.Resolve(bag)
	uc.stats.RecordExtraction(ocrResult.ExtractionScore)

	docFace := uc.faceExtractor.ExtractFromDocument(ctx, pre.Original, docType)
	if docFace == nil {
		decision := &Decision{
			OCR:           ocrResult,
			Face:          face.VerificationResult{Method: face.MethodFailed, Error: "no face detected in document"},
			OverallStatus: StatusFailed,
			State:         StateFailedNoFace,
			FailureReason: "no face detected in document",
		}
		opLogger.Warn("no face detected in document", zap.String("state", string(StateFailedNoFace)))
		uc.persistDecision(ctx, opLogger, requestID, userID, docBytes, docType, decision)
		return requestID, decision, nil
	}

	verification := uc.faceVerifier.Verify(ctx, docFace.Image, docFace, selfie)
	uc.stats.RecordVerification(verification.Verified)

	livenessScore := uc.liveness.Score(ctx, selfie)
	verification.LivenessScore = &livenessScore
	livenessPassed := livenessScore >= uc.liveness.MinScore()

	decision := &Decision{
		OCR:            ocrResult,
		Face:           verification,
		LivenessPassed: livenessPassed,
		OverallStatus:  decideStatus(verification.Verified, ocrResult.ExtractionScore, livenessPassed),
		State:          StateDecided,
		DocumentFace:   docFace.Image,
	}
	if decision.OverallStatus == StatusFailed {
		decision.FailureReason = failureReason(verification, ocrResult.ExtractionScore, livenessPassed)
	}
	opLogger.Info("verification decided",
		zap.String("status", decision.OverallStatus),
		zap.Float64("extraction_score", ocrResult.ExtractionScore),
		zap.Bool("face_verified", verification.Verified),
		zap.Float64("liveness_score", livenessScore))
	uc.persistDecision(ctx, opLogger, requestID, userID, docBytes, docType, decision)

	return requestID, decision, nil
}

// ExtractFace locates the photo inside a document image. A nil observation
// with nil error means no face was found.
func (uc *VerificationUseCase) ExtractFace(ctx context.Context, docBytes []byte, docType face.DocumentType) (*face.Observation, error) {
	uc.stats.RecordRequest()
	doc, err := imaging.Decode(docBytes)
	if err != nil {
		return nil, logging.NewOperationError("usecase.extract_face", "", err)
	}
	return uc.faceExtractor.ExtractFromDocument(ctx, doc, docType), nil
}

// VerifyFaces compares two face images directly and scores liveness on the
// second one.
func (uc *VerificationUseCase) VerifyFaces(ctx context.Context, docFaceBytes, selfieBytes []byte) (face.VerificationResult, error) {
	uc.stats.RecordRequest()

	docFace, err := imaging.Decode(docFaceBytes)
	if err != nil {
		return face.VerificationResult{}, logging.NewOperationError("usecase.verify_faces", "", err)
	}
	selfie, err := imaging.Decode(selfieBytes)
	if err != nil {
		return face.VerificationResult{}, logging.NewOperationError("usecase.verify_faces", "", err)
	}

	result := uc.faceVerifier.Verify(ctx, docFace, nil, selfie)
	uc.stats.RecordVerification(result.Verified)

	livenessScore := uc.liveness.Score(ctx, selfie)
	result.LivenessScore = &livenessScore
	return result, nil
}

// CheckLiveness scores a single face image.
func (uc *VerificationUseCase) CheckLiveness(ctx context.Context, imageBytes []byte) (float64, error) {
	img, err := imaging.Decode(imageBytes)
	if err != nil {
		return 0, logging.NewOperationError("usecase.check_liveness", "", err)
	}
	return uc.liveness.Score(ctx, img), nil
}

// GetResult retrieves a cached verification outcome or loads from persistence.
func (uc *VerificationUseCase) GetResult(ctx context.Context, userID, requestID string) (*repository.VerificationLog, error) {
	cacheKey := fmt.Sprintf("verification:%s", requestID)
	cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey)
	if err == nil {
		var payload cachedVerification
		if err := json.Unmarshal([]byte(cached), &payload); err == nil && payload.UserID == userID {
			return &repository.VerificationLog{
				RequestID:       payload.RequestID,
				UserID:          payload.UserID,
				Flow:            payload.Flow,
				ExtractionScore: payload.Score,
				OverallStatus:   payload.Status,
				Details:         payload.Details,
				SHA1Hash:        payload.Hash,
				CreatedAt:       payload.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		uc.logger.Warn("failed to read cache", logging.ErrorFields(err)...)
	}

	return uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
}

// GetDuplicateReport builds a duplicate detection report for a verification request.
func (uc *VerificationUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, userID, log.SHA1Hash, log.RequestID)
	if err != nil {
		return nil, err
	}

	return &DuplicateReport{Request: log, Duplicates: duplicates}, nil
}

func decideStatus(faceVerified bool, extractionScore float64, livenessPassed bool) string {
	if faceVerified && extractionScore > 70 && livenessPassed {
		return StatusVerified
	}
	return StatusFailed
}

func failureReason(verification face.VerificationResult, extractionScore float64, livenessPassed bool) string {
	switch {
	case verification.Error != "":
		return verification.Error
	case !verification.Verified:
		return "face comparison did not match"
	case extractionScore <= 70:
		return fmt.Sprintf("extraction score %.1f below required 70", extractionScore)
	case !livenessPassed:
		return "liveness check failed"
	}
	return ""
}

func (uc *VerificationUseCase) persistDecision(ctx context.Context, opLogger *zap.Logger, requestID, userID string, docBytes []byte, docType face.DocumentType, decision *Decision) {
	log := &repository.VerificationLog{
		RequestID:       requestID,
		UserID:          userID,
		Flow:            flowVerify,
		DocumentType:    string(docType),
		ExtractionScore: decision.OCR.ExtractionScore,
		FaceVerified:    decision.Face.Verified,
		FaceConfidence:  decision.Face.Confidence,
		FaceMethod:      decision.Face.Method,
		LivenessPassed:  decision.LivenessPassed,
		OverallStatus:   decision.OverallStatus,
		FailureReason:   decision.FailureReason,
		Details:         decision.OCR.Summary,
		SHA1Hash:        hashBytes(docBytes),
		CreatedAt:       time.Now().UTC(),
	}
	if decision.Face.LivenessScore != nil {
		log.LivenessScore = *decision.Face.LivenessScore
	}
	uc.persistAndCache(ctx, opLogger, log)
}

// persistAndCache stores the log and caches a summary. Persistence failures
// are logged but do not fail the request; the pipeline result is already
// computed and belongs to the caller.
func (uc *VerificationUseCase) persistAndCache(ctx context.Context, opLogger *zap.Logger, log *repository.VerificationLog) {
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		opLogger.Error("failed to persist verification log", logging.ErrorFields(err)...)
	}

	cached := cachedVerification{
		RequestID: log.RequestID,
		UserID:    log.UserID,
		Flow:      log.Flow,
		Score:     log.ExtractionScore,
		Status:    log.OverallStatus,
		Details:   log.Details,
		Hash:      log.SHA1Hash,
		CreatedAt: log.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		opLogger.Error("failed to serialize verification result", zap.Error(err))
		return
	}

	cacheKey := fmt.Sprintf("verification:%s", log.RequestID)
	if err := uc.withRedisRetry(ctx, log.RequestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Error("failed to cache verification result", logging.ErrorFields(err)...)
	}
}

func hashBytes(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
