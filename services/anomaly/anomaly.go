package anomaly

import (
	"fmt"
	"time"

	"campus-access/logger"
	"campus-access/models/anomaly"
	"campus-access/services/devicetrust"
	"campus-access/services/ledger"

	"gorm.io/gorm"
)

// Config holds the detection thresholds. Defaults match campus-scale
// traffic; ops tunes them per deployment.
type Config struct {
	// ResetThreshold flags users with at least this many device revocations
	// inside ResetWindow.
	ResetThreshold int64
	ResetWindow    time.Duration

	// FailureThreshold flags action points with at least this many failed
	// scans inside FailureWindow.
	FailureThreshold int64
	FailureWindow    time.Duration
}

func DefaultConfig() Config {
	return Config{
		ResetThreshold:   3,
		ResetWindow:      7 * 24 * time.Hour,
		FailureThreshold: 50,
		FailureWindow:    24 * time.Hour,
	}
}

// Service is the periodic anomaly detector. It reads the device trust
// history and the scan ledger, and produces read-only flag rows for
// dashboards. It never blocks a scan; that authority stays with the
// validator alone.
type Service struct {
	DB      *gorm.DB
	Ledger  *ledger.Service
	Devices *devicetrust.Service
	Config  Config
}

// NewAnomalyDetector creates a new anomaly detector service
func NewAnomalyDetector(db *gorm.DB, led *ledger.Service, devices *devicetrust.Service, cfg Config) *Service {
	return &Service{
		DB:      db,
		Ledger:  led,
		Devices: devices,
		Config:  cfg,
	}
}

// Start runs the detector on the given interval until the process exits.
// Intended to be launched as a goroutine from main.
func (s *Service) Start(interval time.Duration) {
	logger.Info(fmt.Sprintf("Anomaly detector running every %s", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := s.Run(); err != nil {
			logger.Error("Anomaly detection pass failed", err)
		}
	}
}

// Run executes one detection pass
func (s *Service) Run() error {
	now := time.Now()

	if err := s.flagExcessiveResets(now); err != nil {
		return err
	}
	return s.flagFailureClusters(now)
}

// Flags returns the most recent flags for dashboards
func (s *Service) Flags(limit int) ([]anomaly.Flag, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var flags []anomaly.Flag
	err := s.DB.Order("created_at DESC").Limit(limit).Find(&flags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list anomaly flags: %w", err)
	}
	return flags, nil
}

func (s *Service) flagExcessiveResets(now time.Time) error {
	since := now.Add(-s.Config.ResetWindow)

	users, err := s.Devices.UsersWithResetsSince(since, s.Config.ResetThreshold)
	if err != nil {
		return fmt.Errorf("failed to scan reset history: %w", err)
	}

	for userID, count := range users {
		flagged, err := s.alreadyFlagged(anomaly.KindExcessiveResets, &userID, nil, since)
		if err != nil {
			return err
		}
		if flagged {
			continue
		}

		uid := userID
		flag := anomaly.Flag{
			Kind:        anomaly.KindExcessiveResets,
			UserID:      &uid,
			Count:       int(count),
			WindowStart: since,
			WindowEnd:   now,
			Details:     fmt.Sprintf("%d device resets within %s", count, s.Config.ResetWindow),
		}
		if err := s.DB.Create(&flag).Error; err != nil {
			return fmt.Errorf("failed to store reset flag: %w", err)
		}
		logger.Warning(fmt.Sprintf("Flagged user %s: %s", userID, flag.Details))
	}
	return nil
}

func (s *Service) flagFailureClusters(now time.Time) error {
	since := now.Add(-s.Config.FailureWindow)

	clusters, err := s.Ledger.FailureClusters(since, s.Config.FailureThreshold)
	if err != nil {
		return err
	}

	for _, cluster := range clusters {
		apID := cluster.ActionPointID
		flagged, err := s.alreadyFlagged(anomaly.KindFailureClustering, nil, &apID, since)
		if err != nil {
			return err
		}
		if flagged {
			continue
		}

		flag := anomaly.Flag{
			Kind:          anomaly.KindFailureClustering,
			ActionPointID: &apID,
			Count:         int(cluster.Total),
			WindowStart:   since,
			WindowEnd:     now,
			Details:       fmt.Sprintf("%d failed scans within %s, possible misconfiguration or probing", cluster.Total, s.Config.FailureWindow),
		}
		if err := s.DB.Create(&flag).Error; err != nil {
			return fmt.Errorf("failed to store failure flag: %w", err)
		}
		logger.Warning(fmt.Sprintf("Flagged action point %d: %s", apID, flag.Details))
	}
	return nil
}

// alreadyFlagged suppresses repeat flags for the same subject inside the
// current window so dashboards are not flooded by every pass.
func (s *Service) alreadyFlagged(kind anomaly.FlagKind, userID *string, actionPointID *uint, since time.Time) (bool, error) {
	db := s.DB.Model(&anomaly.Flag{}).Where("kind = ? AND created_at >= ?", kind, since)
	if userID != nil {
		db = db.Where("user_id = ?", *userID)
	}
	if actionPointID != nil {
		db = db.Where("action_point_id = ?", *actionPointID)
	}

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check existing flags: %w", err)
	}
	return count > 0, nil
}
