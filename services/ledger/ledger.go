package ledger

import (
	"errors"
	"fmt"
	"time"

	"campus-access/models/scanlog"
	scanlogTypes "campus-access/types/scanlog"

	"github.com/jinzhu/now"
	"gorm.io/gorm"
)

// Service is the append-only scan ledger. Rows are never updated after
// insert; duplicate suppression reads always go to the database, never a
// cache.
type Service struct {
	DB *gorm.DB
}

// NewLedgerService creates a new scan ledger service
func NewLedgerService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// FindByScanEventID returns the stored attempt for an idempotency key, or
// nil when the key has not been seen.
func (s *Service) FindByScanEventID(scanEventID string) (*scanlog.ScanLog, error) {
	var row scanlog.ScanLog
	err := s.DB.Where("scan_event_id = ?", scanEventID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// HasRecentSuccess reports whether the user already has a success entry at
// the action point inside the trailing duplicate window.
func (s *Service) HasRecentSuccess(userID string, actionPointID uint, window time.Duration, at time.Time) (bool, error) {
	var count int64
	err := s.DB.Model(&scanlog.ScanLog{}).
		Where("user_id = ? AND action_point_id = ? AND result = ? AND server_timestamp > ?",
			userID, actionPointID, scanlog.ResultSuccess, at.Add(-window)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Append durably writes one attempt row. Unique violations (concurrent
// retry of the same scan_event_id, or a concurrent success inside the same
// dedup bucket) surface as gorm.ErrDuplicatedKey for the caller to resolve.
func (s *Service) Append(row *scanlog.ScanLog) error {
	return s.DB.Create(row).Error
}

// List returns ledger rows matching the dashboard filters, newest first
func (s *Service) List(query scanlogTypes.ListScanLogsQuery) ([]scanlog.ScanLog, error) {
	db := s.DB.Model(&scanlog.ScanLog{})

	if query.ActionPointID != 0 {
		db = db.Where("action_point_id = ?", query.ActionPointID)
	}
	if query.UserID != "" {
		db = db.Where("user_id = ?", query.UserID)
	}
	if query.Result != "" {
		db = db.Where("result = ?", query.Result)
	}
	if query.From != "" {
		if t, err := time.Parse(time.RFC3339, query.From); err == nil {
			db = db.Where("server_timestamp >= ?", t)
		}
	}
	if query.To != "" {
		if t, err := time.Parse(time.RFC3339, query.To); err == nil {
			db = db.Where("server_timestamp <= ?", t)
		}
	}

	limit := query.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var rows []scanlog.ScanLog
	err := db.Order("server_timestamp DESC").Limit(limit).Offset(query.Offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scan logs: %w", err)
	}
	return rows, nil
}

// DailySummary aggregates scan counts by action type for the trailing days.
// Day boundaries are computed in Go so the query stays portable across
// postgres and the sqlite test database.
func (s *Service) DailySummary(days int) ([]scanlogTypes.DailyCount, error) {
	if days <= 0 {
		days = 7
	}

	var out []scanlogTypes.DailyCount
	for i := days - 1; i >= 0; i-- {
		dayStart := now.New(time.Now().AddDate(0, 0, -i)).BeginningOfDay()
		dayEnd := dayStart.AddDate(0, 0, 1)

		var rows []struct {
			ActionType string
			Total      int64
			Successes  int64
		}
		err := s.DB.Model(&scanlog.ScanLog{}).
			Select("action_points.action_type AS action_type, COUNT(*) AS total, SUM(CASE WHEN scan_logs.result = ? THEN 1 ELSE 0 END) AS successes", scanlog.ResultSuccess).
			Joins("JOIN action_points ON action_points.id = scan_logs.action_point_id").
			Where("scan_logs.server_timestamp >= ? AND scan_logs.server_timestamp < ?", dayStart, dayEnd).
			Group("action_points.action_type").
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to build daily summary: %w", err)
		}

		for _, r := range rows {
			out = append(out, scanlogTypes.DailyCount{
				Day:        dayStart.Format("2006-01-02"),
				ActionType: r.ActionType,
				Total:      r.Total,
				Successes:  r.Successes,
			})
		}
	}
	return out, nil
}

// FailureBreakdown counts non-success outcomes by validation result since
// the given time.
func (s *Service) FailureBreakdown(since time.Time) ([]scanlogTypes.FailureCount, error) {
	var rows []scanlogTypes.FailureCount
	err := s.DB.Model(&scanlog.ScanLog{}).
		Select("result AS result, COUNT(*) AS total").
		Where("result <> ? AND server_timestamp >= ?", scanlog.ResultSuccess, since).
		Group("result").
		Order("total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build failure breakdown: %w", err)
	}
	return rows, nil
}

// FailureCluster is an action point with an abnormal number of failed scans
type FailureCluster struct {
	ActionPointID uint
	Total         int64
}

// FailureClusters returns action points whose failure count since the given
// time reaches the threshold. Consumed by the anomaly detector.
func (s *Service) FailureClusters(since time.Time, threshold int64) ([]FailureCluster, error) {
	var rows []FailureCluster
	err := s.DB.Model(&scanlog.ScanLog{}).
		Select("action_point_id AS action_point_id, COUNT(*) AS total").
		Where("result <> ? AND action_point_id <> 0 AND server_timestamp >= ?", scanlog.ResultSuccess, since).
		Group("action_point_id").
		Having("COUNT(*) >= ?", threshold).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find failure clusters: %w", err)
	}
	return rows, nil
}
