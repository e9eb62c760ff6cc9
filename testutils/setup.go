package testutils

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"campus-access/database"
	"campus-access/routes"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetTestEnv points the crypto-dependent code at deterministic test keys
func SetTestEnv() {
	os.Setenv("JWT_SECRET", "test-jwt-secret")
	os.Setenv("QR_SIGNING_KEY", "test-qr-signing-key")
	os.Setenv("ENCRYPTION_KEY", "test!encryption!key!32!bytes!ab!")
	os.Setenv("TOKEN_GRACE_SECONDS", "0")
	os.Unsetenv("STANDARD_FAIL_OPEN")
	os.Unsetenv("GEMINI_API_KEY")
}

// TestDB opens an in-memory database migrated with the full schema
func TestDB(t *testing.T) *gorm.DB {
	SetTestEnv()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "Failed to create test database")

	err = database.Migrate(db)
	require.NoError(t, err, "Failed to migrate test database")

	return db
}

// SetupTestApp wires the full route surface onto a fresh app and database
func SetupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db := TestDB(t)

	app := fiber.New()
	routes.SetupRoutes(app, db)
	return app, db
}

// AuthToken mints a bearer token carrying the given permissions
func AuthToken(t *testing.T, userID string, permissions ...string) string {
	claims := jwt.MapClaims{
		"user_id":     userID,
		"permissions": permissions,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(os.Getenv("JWT_SECRET")))
	assert.NoError(t, err, "Failed to sign test token")
	return token
}

// MakeRequest performs one request against the test app and returns the
// response
func MakeRequest(t *testing.T, app *fiber.App, method, url string, body interface{}, bearer string) *http.Response {
	var reqBody *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal request body")
		reqBody = bytes.NewBuffer(payload)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, url, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err, "Request failed")
	return resp
}

// DecodeBody unmarshals a JSON response body into out
func DecodeBody(t *testing.T, resp *http.Response, out interface{}) {
	defer resp.Body.Close()
	err := json.NewDecoder(resp.Body).Decode(out)
	require.NoError(t, err, "Failed to decode response body")
}
