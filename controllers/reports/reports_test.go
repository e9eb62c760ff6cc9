package reports_test

import (
	"testing"
	"time"

	"campus-access/constants"
	"campus-access/models/actionpoint"
	anomalyModel "campus-access/models/anomaly"
	"campus-access/models/scanlog"
	"campus-access/testutils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiResponse struct {
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Data    map[string]interface{} `json:"data"`
}

type listResponse struct {
	Message string                   `json:"message"`
	Status  int                      `json:"status"`
	Data    []map[string]interface{} `json:"data"`
}

func seedLedger(t *testing.T, db *gorm.DB) uint {
	ap := actionpoint.ActionPoint{
		Name:          "Main Mess Hall",
		LocationCode:  "mess-main",
		ActionType:    actionpoint.ActionMessEntry,
		QRMode:        actionpoint.ModeB,
		SecurityLevel: actionpoint.SecurityStandard,
		IsActive:      true,
		CreatedBy:     "admin-1",
	}
	require.NoError(t, db.Create(&ap).Error)

	rows := []scanlog.ValidationResult{
		scanlog.ResultSuccess,
		scanlog.ResultDuplicateScan,
		scanlog.ResultExpiredToken,
	}
	for _, result := range rows {
		row := scanlog.ScanLog{
			ScanEventID:     uuid.NewString(),
			ActionPointID:   ap.ID,
			UserID:          "student-1",
			DeviceID:        "device-1",
			ServerTimestamp: time.Now(),
			Result:          result,
		}
		if result == scanlog.ResultSuccess {
			key := uuid.NewString()
			row.DedupKey = &key
		}
		require.NoError(t, db.Create(&row).Error)
	}
	return ap.ID
}

func TestListScanLogsEndpoint(t *testing.T) {
	app, db := testutils.SetupTestApp(t)
	seedLedger(t, db)
	security := testutils.AuthToken(t, "sec-1", constants.PermSecurityFull)

	resp := testutils.MakeRequest(t, app, "GET", "/api/scan-logs/", nil, security)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body listResponse
	testutils.DecodeBody(t, resp, &body)
	assert.Len(t, body.Data, 3)

	resp = testutils.MakeRequest(t, app, "GET", "/api/scan-logs/?result=expired_token", nil, security)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	testutils.DecodeBody(t, resp, &body)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "expired_token", body.Data[0]["validation_result"])
}

func TestScanSummaryEndpoint(t *testing.T) {
	app, db := testutils.SetupTestApp(t)
	seedLedger(t, db)
	security := testutils.AuthToken(t, "sec-1", constants.PermSecurityFull)

	resp := testutils.MakeRequest(t, app, "GET", "/api/scan-logs/summary?days=1", nil, security)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body apiResponse
	testutils.DecodeBody(t, resp, &body)

	days, ok := body.Data["days"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, days)
	first := days[0].(map[string]interface{})
	assert.Equal(t, "mess_entry", first["action_type"])
	assert.EqualValues(t, 3, first["total"])
	assert.EqualValues(t, 1, first["successes"])

	failures, ok := body.Data["failures"].([]interface{})
	require.True(t, ok)
	assert.Len(t, failures, 2)
}

func TestAnomaliesEndpoint(t *testing.T) {
	app, db := testutils.SetupTestApp(t)
	security := testutils.AuthToken(t, "sec-1", constants.PermSecurityFull)

	uid := "student-hot"
	require.NoError(t, db.Create(&anomalyModel.Flag{
		Kind:        anomalyModel.KindExcessiveResets,
		UserID:      &uid,
		Count:       4,
		WindowStart: time.Now().Add(-7 * 24 * time.Hour),
		WindowEnd:   time.Now(),
		Details:     "4 device resets within 168h0m0s",
	}).Error)

	resp := testutils.MakeRequest(t, app, "GET", "/api/scan-logs/anomalies", nil, security)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body apiResponse
	testutils.DecodeBody(t, resp, &body)
	flags, ok := body.Data["flags"].([]interface{})
	require.True(t, ok)
	require.Len(t, flags, 1)
	flag := flags[0].(map[string]interface{})
	assert.Equal(t, "excessive_device_resets", flag["kind"])
	assert.Equal(t, "student-hot", flag["user_id"])
}

func TestReportsRequirePermission(t *testing.T) {
	app, _ := testutils.SetupTestApp(t)
	holder := testutils.AuthToken(t, "student-1", constants.PermDeviceHolder)

	resp := testutils.MakeRequest(t, app, "GET", "/api/scan-logs/", nil, holder)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
