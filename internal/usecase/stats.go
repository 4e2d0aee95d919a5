package usecase

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats aggregates process-wide usage counters. It is owned by the host
// process and injected into the use case; every update is atomic or serial
// relative to concurrent requests so no increments are lost. Counters are
// mirrored into prometheus for scraping.
type Stats struct {
	totalRequests           atomic.Int64
	successfulExtractions   atomic.Int64
	failedExtractions       atomic.Int64
	faceVerifications       atomic.Int64
	successfulVerifications atomic.Int64

	avgMu             sync.Mutex
	averageAccuracy   float64
	extractionSamples int64

	startTime time.Time

	promRequests      prometheus.Counter
	promExtractionsOK prometheus.Counter
	promVerifications prometheus.Counter
	promVerifiedOK    prometheus.Counter
	promScore         prometheus.Histogram
}

// NewStats creates a stats aggregator with its prometheus collectors
// registered on the given registerer.
func NewStats(reg prometheus.Registerer) *Stats {
	factory := promauto.With(reg)
	return &Stats{
		startTime: time.Now().UTC(),
		promRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "docverify_requests_total",
			Help: "Total number of verification requests processed",
		}),
		promExtractionsOK: factory.NewCounter(prometheus.CounterOpts{
			Name: "docverify_successful_extractions_total",
			Help: "Total number of extractions that resolved at least one field",
		}),
		promVerifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "docverify_face_verifications_total",
			Help: "Total number of face verification attempts",
		}),
		promVerifiedOK: factory.NewCounter(prometheus.CounterOpts{
			Name: "docverify_successful_verifications_total",
			Help: "Total number of face verifications that matched",
		}),
		promScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docverify_extraction_score",
			Help:    "Distribution of document extraction scores",
			Buckets: []float64{0, 12.5, 25, 37.5, 50, 62.5, 75, 87.5, 100},
		}),
	}
}

// RecordRequest counts one incoming request.
func (s *Stats) RecordRequest() {
	s.totalRequests.Add(1)
	s.promRequests.Inc()
}

// RecordExtraction counts an extraction outcome and folds a successful score
// into the running average accuracy.
func (s *Stats) RecordExtraction(score float64) {
	s.promScore.Observe(score)
	if score <= 0 {
		s.failedExtractions.Add(1)
		return
	}
	s.successfulExtractions.Add(1)
	s.promExtractionsOK.Inc()

	s.avgMu.Lock()
	s.extractionSamples++
	s.averageAccuracy += (score - s.averageAccuracy) / float64(s.extractionSamples)
	s.avgMu.Unlock()
}

// RecordVerification counts a face verification attempt and its outcome.
func (s *Stats) RecordVerification(verified bool) {
	s.faceVerifications.Add(1)
	s.promVerifications.Inc()
	if verified {
		s.successfulVerifications.Add(1)
		s.promVerifiedOK.Inc()
	}
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	TotalRequests           int64   `json:"total_requests"`
	SuccessfulExtractions   int64   `json:"successful_extractions"`
	FailedExtractions       int64   `json:"failed_extractions"`
	FaceVerifications       int64   `json:"face_verifications"`
	SuccessfulVerifications int64   `json:"successful_verifications"`
	AverageAccuracy         float64 `json:"average_accuracy"`
	StartTime               string  `json:"start_time"`
	Uptime                  string  `json:"uptime"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	s.avgMu.Lock()
	avg := s.averageAccuracy
	s.avgMu.Unlock()

	return Snapshot{
		TotalRequests:           s.totalRequests.Load(),
		SuccessfulExtractions:   s.successfulExtractions.Load(),
		FailedExtractions:       s.failedExtractions.Load(),
		FaceVerifications:       s.faceVerifications.Load(),
		SuccessfulVerifications: s.successfulVerifications.Load(),
		AverageAccuracy:         avg,
		StartTime:               s.startTime.Format(time.RFC3339),
		Uptime:                  time.Since(s.startTime).Round(time.Second).String(),
	}
}
