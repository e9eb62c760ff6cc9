package anomaly

import (
	"fmt"
	"testing"
	"time"

	"campus-access/database"
	anomalyModel "campus-access/models/anomaly"
	"campus-access/models/device"
	"campus-access/models/scanlog"
	"campus-access/services/devicetrust"
	"campus-access/services/ledger"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDetector(t *testing.T, cfg Config) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	led := ledger.NewLedgerService(db)
	devices := devicetrust.NewDeviceTrustService(db)
	return NewAnomalyDetector(db, led, devices, cfg), db
}

func seedRevocations(t *testing.T, db *gorm.DB, userID string, count int) {
	for i := 0; i < count; i++ {
		event := device.StatusEvent{
			RegistrationID: uint(i + 1),
			UserID:         userID,
			Status:         device.StatusRevoked,
			Reason:         "reset",
			CreatedBy:      "warden-1",
		}
		require.NoError(t, db.Create(&event).Error)
	}
}

func seedFailures(t *testing.T, db *gorm.DB, apID uint, count int) {
	for i := 0; i < count; i++ {
		row := scanlog.ScanLog{
			ScanEventID:     uuid.NewString(),
			ActionPointID:   apID,
			UserID:          fmt.Sprintf("student-%d", i),
			DeviceID:        "device-1",
			ServerTimestamp: time.Now(),
			Result:          scanlog.ResultExpiredToken,
		}
		require.NoError(t, db.Create(&row).Error)
	}
}

func TestRunFlagsExcessiveResets(t *testing.T) {
	cfg := DefaultConfig()
	s, db := setupDetector(t, cfg)

	seedRevocations(t, db, "student-hot", 3)
	seedRevocations(t, db, "student-calm", 1)

	require.NoError(t, s.Run())

	flags, err := s.Flags(10)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, anomalyModel.KindExcessiveResets, flags[0].Kind)
	require.NotNil(t, flags[0].UserID)
	assert.Equal(t, "student-hot", *flags[0].UserID)
	assert.Equal(t, 3, flags[0].Count)
}

func TestRunFlagsFailureClusters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 5
	s, db := setupDetector(t, cfg)

	seedFailures(t, db, 42, 5)

	require.NoError(t, s.Run())

	flags, err := s.Flags(10)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, anomalyModel.KindFailureClustering, flags[0].Kind)
	require.NotNil(t, flags[0].ActionPointID)
	assert.EqualValues(t, 42, *flags[0].ActionPointID)
}

func TestRunBelowThresholdsStaysQuiet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 50
	s, db := setupDetector(t, cfg)

	seedRevocations(t, db, "student-1", 2)
	seedFailures(t, db, 42, 10)

	require.NoError(t, s.Run())

	flags, err := s.Flags(10)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestRepeatRunsDoNotDuplicateFlags(t *testing.T) {
	cfg := DefaultConfig()
	s, db := setupDetector(t, cfg)

	seedRevocations(t, db, "student-hot", 4)

	require.NoError(t, s.Run())
	require.NoError(t, s.Run())

	flags, err := s.Flags(10)
	require.NoError(t, err)
	assert.Len(t, flags, 1)
}

func TestGenerateDigestFailsSoftWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	uid := "student-1"
	flags := []anomalyModel.Flag{{
		Kind:    anomalyModel.KindExcessiveResets,
		UserID:  &uid,
		Count:   4,
		Details: "4 device resets within 168h0m0s",
	}}
	assert.Equal(t, "", GenerateDigest(flags))
}
