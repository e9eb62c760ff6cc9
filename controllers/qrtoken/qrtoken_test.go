package qrtoken_test

import (
	"fmt"
	"testing"

	"campus-access/constants"
	"campus-access/services/registry"
	"campus-access/testutils"
	apTypes "campus-access/types/actionpoint"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiResponse struct {
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Data    map[string]interface{} `json:"data"`
}

func seedAP(t *testing.T, db *gorm.DB, mode string, rotation int) uint {
	reg := registry.NewRegistryService(db)
	ap, err := reg.Create(&apTypes.StoreActionPointRequest{
		Name:              "Library Counter",
		LocationCode:      fmt.Sprintf("lib-%s", mode),
		ActionType:        "library_visit",
		QRMode:            mode,
		QRRotationMinutes: rotation,
	}, "admin-1")
	require.NoError(t, err)
	return ap.ID
}

func TestIssueTokenEndpoint(t *testing.T) {
	app, db := testutils.SetupTestApp(t)
	apID := seedAP(t, db, "mode_a", 5)
	admin := testutils.AuthToken(t, "admin-1", constants.PermSecurityFull)

	resp := testutils.MakeRequest(t, app, "GET", fmt.Sprintf("/api/qr/issue/%d", apID), nil, admin)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body apiResponse
	testutils.DecodeBody(t, resp, &body)
	assert.NotEmpty(t, body.Data["value"])
	assert.Equal(t, "mode_a", body.Data["mode"])
	assert.NotEmpty(t, body.Data["expires_at"])

	// Repeat call inside the rotation period returns the same value.
	first := body.Data["value"]
	resp = testutils.MakeRequest(t, app, "GET", fmt.Sprintf("/api/qr/issue/%d", apID), nil, admin)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	testutils.DecodeBody(t, resp, &body)
	assert.Equal(t, first, body.Data["value"])
}

func TestIssueTokenUnknownActionPoint(t *testing.T) {
	app, _ := testutils.SetupTestApp(t)
	admin := testutils.AuthToken(t, "admin-1", constants.PermSecurityFull)

	resp := testutils.MakeRequest(t, app, "GET", "/api/qr/issue/99999", nil, admin)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRegenerateTokenEndpoint(t *testing.T) {
	app, db := testutils.SetupTestApp(t)
	staticID := seedAP(t, db, "mode_b", 0)
	rotatingID := seedAP(t, db, "mode_a", 5)
	admin := testutils.AuthToken(t, "admin-1", constants.PermSuperAdminFull)

	resp := testutils.MakeRequest(t, app, "GET", fmt.Sprintf("/api/qr/issue/%d", staticID), nil, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body apiResponse
	testutils.DecodeBody(t, resp, &body)
	original := body.Data["value"]
	assert.Nil(t, body.Data["expires_at"])

	resp = testutils.MakeRequest(t, app, "POST", fmt.Sprintf("/api/qr/regenerate/%d", staticID), nil, admin)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	testutils.DecodeBody(t, resp, &body)
	assert.NotEqual(t, original, body.Data["value"])

	// Rotating action points never regenerate by hand.
	resp = testutils.MakeRequest(t, app, "POST", fmt.Sprintf("/api/qr/regenerate/%d", rotatingID), nil, admin)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRegenerateRequiresAdmin(t *testing.T) {
	app, db := testutils.SetupTestApp(t)
	staticID := seedAP(t, db, "mode_b", 0)
	holder := testutils.AuthToken(t, "student-1", constants.PermDeviceHolder)

	resp := testutils.MakeRequest(t, app, "POST", fmt.Sprintf("/api/qr/regenerate/%d", staticID), nil, holder)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
