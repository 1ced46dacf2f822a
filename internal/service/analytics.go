package service

import (
	"context"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/errs"
	"github.com/aman-churiwal/gen-broker/internal/models"
	"github.com/aman-churiwal/gen-broker/internal/repository"
)

type AnalyticsService struct {
	repository *repository.RequestLogRepository
}

func NewAnalyticsService(repo *repository.RequestLogRepository) *AnalyticsService {
	return &AnalyticsService{repository: repo}
}

// Holds usage summary data
type AnalyticsSummary struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessRate        float64 `json:"success_rate"`
	ErrorRate          float64 `json:"error_rate"`
	QuotaRejections    int64   `json:"quota_rejections"`
	QuotaRejectionRate float64 `json:"quota_rejection_rate"`
	CredentialOutages  int64   `json:"credential_outages"`
}

// Retrieves the usage summary for a time range
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	summary := &AnalyticsSummary{}

	total, err := s.repository.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalRequests = total

	if total == 0 {
		return summary, nil
	}

	successes, err := s.repository.CountByStatusCodeRange(ctx, 200, 299, from, to)
	if err != nil {
		return nil, err
	}
	summary.SuccessRate = float64(successes) / float64(total) * 100

	failures, err := s.repository.CountByStatusCodeRange(ctx, 400, 599, from, to)
	if err != nil {
		return nil, err
	}
	summary.ErrorRate = float64(failures) / float64(total) * 100

	quotaRejections, err := s.repository.CountByErrorCode(ctx, string(errs.CodeQuotaExceeded), from, to)
	if err != nil {
		return nil, err
	}
	summary.QuotaRejections = quotaRejections
	summary.QuotaRejectionRate = float64(quotaRejections) / float64(total) * 100

	outages, err := s.repository.CountByErrorCode(ctx, string(errs.CodeCredentialUnavailable), from, to)
	if err != nil {
		return nil, err
	}
	summary.CredentialOutages = outages

	return summary, nil
}

// Holds per-client statistics
type ClientStats struct {
	ClientID        string `json:"client_id"`
	TotalRequests   int64  `json:"total_requests"`
	QuotaRejections int64  `json:"quota_rejections"`
}

// Retrieves statistics for a specific client
func (s *AnalyticsService) GetClientStats(ctx context.Context, clientID string, from, to time.Time) (*ClientStats, error) {
	total, err := s.repository.CountByClient(ctx, clientID, from, to)
	if err != nil {
		return nil, err
	}

	logs, err := s.repository.FindByClient(ctx, clientID, from, to, 1000, 0)
	if err != nil {
		return nil, err
	}

	var rejections int64
	for _, entry := range logs {
		if entry.ErrorCode == string(errs.CodeQuotaExceeded) {
			rejections++
		}
	}

	return &ClientStats{
		ClientID:        clientID,
		TotalRequests:   total,
		QuotaRejections: rejections,
	}, nil
}

// Retrieves raw logs for the admin surface
func (s *AnalyticsService) GetLogs(ctx context.Context, from, to time.Time, limit, offset int) ([]models.RequestLog, error) {
	return s.repository.FindByTimeRange(ctx, from, to, limit, offset)
}
