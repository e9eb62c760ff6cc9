package ledger

import (
	"fmt"
	"testing"
	"time"

	"campus-access/database"
	"campus-access/models/actionpoint"
	"campus-access/models/scanlog"
	scanlogTypes "campus-access/types/scanlog"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLedger(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewLedgerService(db), db
}

func seedActionPoint(t *testing.T, db *gorm.DB, actionType string) uint {
	ap := actionpoint.ActionPoint{
		Name:         "Seeded Point",
		LocationCode: "loc-" + uuid.NewString()[:8],
		ActionType:   actionpoint.ActionType(actionType),
		QRMode:       actionpoint.ModeB,
		SecurityLevel: actionpoint.SecurityStandard,
		IsActive:     true,
		CreatedBy:    "admin-1",
	}
	require.NoError(t, db.Create(&ap).Error)
	return ap.ID
}

func appendRow(t *testing.T, s *Service, apID uint, userID string, result scanlog.ValidationResult, at time.Time) *scanlog.ScanLog {
	row := &scanlog.ScanLog{
		ScanEventID:     uuid.NewString(),
		ActionPointID:   apID,
		UserID:          userID,
		DeviceID:        "device-1",
		ServerTimestamp: at,
		Result:          result,
	}
	if result == scanlog.ResultSuccess {
		key := fmt.Sprintf("%s:%d:%d", userID, apID, at.UnixNano())
		row.DedupKey = &key
	}
	require.NoError(t, s.Append(row))
	return row
}

func TestAppendAndFindByScanEventID(t *testing.T) {
	s, db := setupLedger(t)
	apID := seedActionPoint(t, db, "mess_entry")

	row := appendRow(t, s, apID, "student-1", scanlog.ResultSuccess, time.Now())

	found, err := s.FindByScanEventID(row.ScanEventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, row.ID, found.ID)

	missing, err := s.FindByScanEventID(uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAppendDuplicateEventIDTranslates(t *testing.T) {
	s, db := setupLedger(t)
	apID := seedActionPoint(t, db, "mess_entry")

	row := appendRow(t, s, apID, "student-1", scanlog.ResultSuccess, time.Now())

	clone := &scanlog.ScanLog{
		ScanEventID:     row.ScanEventID,
		ActionPointID:   apID,
		UserID:          "student-1",
		DeviceID:        "device-1",
		ServerTimestamp: time.Now(),
		Result:          scanlog.ResultSuccess,
	}
	err := s.Append(clone)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestHasRecentSuccess(t *testing.T) {
	s, db := setupLedger(t)
	apID := seedActionPoint(t, db, "mess_entry")
	now := time.Now()

	appendRow(t, s, apID, "student-1", scanlog.ResultSuccess, now.Add(-10*time.Minute))

	found, err := s.HasRecentSuccess("student-1", apID, 30*time.Minute, now)
	require.NoError(t, err)
	assert.True(t, found)

	// Outside the window.
	found, err = s.HasRecentSuccess("student-1", apID, 5*time.Minute, now)
	require.NoError(t, err)
	assert.False(t, found)

	// A rejection row does not count as a duplicate.
	appendRow(t, s, apID, "student-2", scanlog.ResultGeoViolation, now)
	found, err = s.HasRecentSuccess("student-2", apID, 30*time.Minute, now)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListFilters(t *testing.T) {
	s, db := setupLedger(t)
	messID := seedActionPoint(t, db, "mess_entry")
	libID := seedActionPoint(t, db, "library_visit")
	now := time.Now()

	appendRow(t, s, messID, "student-1", scanlog.ResultSuccess, now.Add(-3*time.Hour))
	appendRow(t, s, messID, "student-2", scanlog.ResultExpiredToken, now.Add(-2*time.Hour))
	appendRow(t, s, libID, "student-1", scanlog.ResultSuccess, now.Add(-1*time.Hour))

	byAP, err := s.List(scanlogTypes.ListScanLogsQuery{ActionPointID: messID})
	require.NoError(t, err)
	assert.Len(t, byAP, 2)

	byUser, err := s.List(scanlogTypes.ListScanLogsQuery{UserID: "student-1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byResult, err := s.List(scanlogTypes.ListScanLogsQuery{Result: "expired_token"})
	require.NoError(t, err)
	require.Len(t, byResult, 1)
	assert.Equal(t, "student-2", byResult[0].UserID)

	// Newest first.
	all, err := s.List(scanlogTypes.ListScanLogsQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, libID, all[0].ActionPointID)

	windowed, err := s.List(scanlogTypes.ListScanLogsQuery{
		From: now.Add(-150 * time.Minute).Format(time.RFC3339),
		To:   now.Add(-30 * time.Minute).Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Len(t, windowed, 2)
}

func TestDailySummary(t *testing.T) {
	s, db := setupLedger(t)
	messID := seedActionPoint(t, db, "mess_entry")
	libID := seedActionPoint(t, db, "library_visit")
	now := time.Now()

	appendRow(t, s, messID, "student-1", scanlog.ResultSuccess, now)
	appendRow(t, s, messID, "student-2", scanlog.ResultDuplicateScan, now)
	appendRow(t, s, libID, "student-3", scanlog.ResultSuccess, now)

	rows, err := s.DailySummary(1)
	require.NoError(t, err)

	totals := map[string]int64{}
	successes := map[string]int64{}
	for _, r := range rows {
		totals[r.ActionType] += r.Total
		successes[r.ActionType] += r.Successes
	}
	assert.EqualValues(t, 2, totals["mess_entry"])
	assert.EqualValues(t, 1, successes["mess_entry"])
	assert.EqualValues(t, 1, totals["library_visit"])
}

func TestFailureBreakdownAndClusters(t *testing.T) {
	s, db := setupLedger(t)
	apID := seedActionPoint(t, db, "mess_entry")
	now := time.Now()

	for i := 0; i < 4; i++ {
		appendRow(t, s, apID, fmt.Sprintf("student-%d", i), scanlog.ResultExpiredToken, now)
	}
	appendRow(t, s, apID, "student-9", scanlog.ResultGeoViolation, now)
	appendRow(t, s, apID, "student-10", scanlog.ResultSuccess, now)

	breakdown, err := s.FailureBreakdown(now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	assert.Equal(t, "expired_token", breakdown[0].Result)
	assert.EqualValues(t, 4, breakdown[0].Total)

	clusters, err := s.FailureClusters(now.Add(-time.Hour), 5)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, apID, clusters[0].ActionPointID)
	assert.EqualValues(t, 5, clusters[0].Total)

	none, err := s.FailureClusters(now.Add(-time.Hour), 6)
	require.NoError(t, err)
	assert.Empty(t, none)
}
