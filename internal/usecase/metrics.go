package usecase

import "context"

// MetricsSummary represents aggregated verification insights from persisted logs.
type MetricsSummary struct {
	TotalRequests        int64   `json:"total_requests"`
	VerifiedRequests     int64   `json:"verified_requests"`
	VerifiedRate         float64 `json:"verified_rate"`
	AverageScore         float64 `json:"average_extraction_score"`
	AverageLivenessScore float64 `json:"average_liveness_score"`
}

// GetMetricsSummary aggregates verification outcomes from persisted logs.
func (uc *VerificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:        aggregation.TotalCount,
		VerifiedRequests:     aggregation.VerifiedCount,
		AverageScore:         aggregation.AverageScore,
		AverageLivenessScore: aggregation.AverageLivenessScore,
	}

	if aggregation.TotalCount > 0 {
		summary.VerifiedRate = float64(aggregation.VerifiedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
