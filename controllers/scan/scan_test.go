package scan_test

import (
	"testing"
	"time"

	"campus-access/constants"
	"campus-access/models/device"
	"campus-access/services/registry"
	"campus-access/services/tokenissuer"
	"campus-access/testutils"
	apTypes "campus-access/types/actionpoint"

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

func seedScanFixtures(t *testing.T, db *gorm.DB) (uint, string) {
	reg := registry.NewRegistryService(db)
	ap, err := reg.Create(&apTypes.StoreActionPointRequest{
		Name:                   "Main Mess Hall",
		LocationCode:           "mess-main",
		ActionType:             "mess_entry",
		QRMode:                 "mode_b",
		DuplicateWindowMinutes: 30,
	}, "admin-1")
	require.NoError(t, err)

	issuer := tokenissuer.NewTokenIssuer(db, reg)
	token, err := issuer.Issue(ap.ID)
	require.NoError(t, err)

	verifiedAt := time.Now()
	require.NoError(t, db.Create(&device.Registration{
		UserID:        "student-1",
		DeviceID:      "device-1",
		Platform:      "android",
		VerifiedPhone: "+8801700000000",
		Status:        device.StatusActive,
		VerifiedAt:    &verifiedAt,
		CreatedBy:     "student-1",
	}).Error)

	return ap.ID, token.Value
}

func TestValidateScanEndpoint(t *testing.T) {
	app, db := testutils.SetupTestApp(t)
	_, tokenValue := seedScanFixtures(t, db)
	bearer := testutils.AuthToken(t, "student-1", constants.PermDeviceHolder)

	payload := map[string]interface{}{
		"token":         tokenValue,
		"user_id":       "student-1",
		"device_id":     "device-1",
		"scan_event_id": uuid.NewString(),
	}

	resp := testutils.MakeRequest(t, app, "POST", "/api/scan/validate", payload, bearer)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body apiResponse
	testutils.DecodeBody(t, resp, &body)
	assert.Equal(t, "success", body.Data["validation_result"])
	assert.Equal(t, "mess_entry", body.Data["action_type"])
	assert.NotEmpty(t, body.Data["server_timestamp"])

	// A second scan inside the window is a policy outcome, still HTTP 200.
	payload["scan_event_id"] = uuid.NewString()
	resp = testutils.MakeRequest(t, app, "POST", "/api/scan/validate", payload, bearer)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	testutils.DecodeBody(t, resp, &body)
	assert.Equal(t, "duplicate_scan", body.Data["validation_result"])
}

func TestValidateScanRejectsGarbageToken(t *testing.T) {
	app, db := testutils.SetupTestApp(t)
	seedScanFixtures(t, db)
	bearer := testutils.AuthToken(t, "student-1", constants.PermDeviceHolder)

	payload := map[string]interface{}{
		"token":         "not-a-token",
		"user_id":       "student-1",
		"device_id":     "device-1",
		"scan_event_id": uuid.NewString(),
	}

	resp := testutils.MakeRequest(t, app, "POST", "/api/scan/validate", payload, bearer)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body apiResponse
	testutils.DecodeBody(t, resp, &body)
	assert.Equal(t, "invalid_qr", body.Data["validation_result"])
}

func TestValidateScanRequiresAuth(t *testing.T) {
	app, db := testutils.SetupTestApp(t)
	_, tokenValue := seedScanFixtures(t, db)

	payload := map[string]interface{}{
		"token":         tokenValue,
		"user_id":       "student-1",
		"device_id":     "device-1",
		"scan_event_id": uuid.NewString(),
	}

	resp := testutils.MakeRequest(t, app, "POST", "/api/scan/validate", payload, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	wrongPerm := testutils.AuthToken(t, "student-1", "campus-access.somewhere-else.permit")
	resp = testutils.MakeRequest(t, app, "POST", "/api/scan/validate", payload, wrongPerm)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestValidateScanRejectsIncompletePayload(t *testing.T) {
	app, _ := testutils.SetupTestApp(t)
	bearer := testutils.AuthToken(t, "student-1", constants.PermDeviceHolder)

	payload := map[string]interface{}{
		"user_id": "student-1",
	}

	resp := testutils.MakeRequest(t, app, "POST", "/api/scan/validate", payload, bearer)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}
