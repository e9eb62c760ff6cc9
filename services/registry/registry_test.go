package registry

import (
	"testing"

	"campus-access/database"
	apTypes "campus-access/types/actionpoint"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRegistry(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewRegistryService(db)
}

func validRequest() apTypes.StoreActionPointRequest {
	return apTypes.StoreActionPointRequest{
		Name:                   "North Mess Hall",
		LocationCode:           "loc-" + uuid.NewString()[:8],
		ActionType:             "mess_entry",
		QRMode:                 "mode_a",
		QRRotationMinutes:      5,
		DuplicateWindowMinutes: 30,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := setupRegistry(t)

	req := validRequest()
	created, err := s.Create(&req, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "standard", created.SecurityLevel.String())
	assert.True(t, created.IsActive)

	fetched, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.LocationCode, fetched.LocationCode)

	byCode, err := s.GetByLocationCode(created.LocationCode)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCode.ID)
}

func TestCreateRejectsBadConfig(t *testing.T) {
	s := setupRegistry(t)

	cases := []struct {
		name   string
		mutate func(*apTypes.StoreActionPointRequest)
	}{
		{"unknown action type", func(r *apTypes.StoreActionPointRequest) {
			r.ActionType = "teleportation"
		}},
		{"mode_a without rotation", func(r *apTypes.StoreActionPointRequest) {
			r.QRRotationMinutes = 0
		}},
		{"latitude without longitude", func(r *apTypes.StoreActionPointRequest) {
			lat := 23.7275
			r.GeoLat = &lat
		}},
		{"geofence without radius", func(r *apTypes.StoreActionPointRequest) {
			lat, lon := 23.7275, 90.3854
			r.GeoLat = &lat
			r.GeoLon = &lon
			r.GeoRadiusMeters = 0
		}},
		{"strict without geofence", func(r *apTypes.StoreActionPointRequest) {
			r.SecurityLevel = "strict"
		}},
		{"start hour without end hour", func(r *apTypes.StoreActionPointRequest) {
			start := "09:00"
			r.ActiveHoursStart = &start
		}},
		{"malformed hours", func(r *apTypes.StoreActionPointRequest) {
			start, end := "9am", "5pm"
			r.ActiveHoursStart = &start
			r.ActiveHoursEnd = &end
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := s.Create(&req, "admin-1")
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateRevalidates(t *testing.T) {
	s := setupRegistry(t)

	req := validRequest()
	created, err := s.Create(&req, "admin-1")
	require.NoError(t, err)

	// Promoting to strict without a geofence must be refused.
	strict := "strict"
	_, err = s.Update(created.ID, &apTypes.UpdateActionPointRequest{SecurityLevel: &strict}, "admin-1")
	assert.ErrorIs(t, err, ErrValidation)

	lat, lon, radius := 23.7275, 90.3854, 50.0
	updated, err := s.Update(created.ID, &apTypes.UpdateActionPointRequest{
		SecurityLevel:   &strict,
		GeoLat:          &lat,
		GeoLon:          &lon,
		GeoRadiusMeters: &radius,
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "strict", updated.SecurityLevel.String())
	assert.Equal(t, "admin-1", updated.UpdatedBy)

	// The cache must serve the updated row.
	fetched, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "strict", fetched.SecurityLevel.String())
}

func TestUpdateUnknownID(t *testing.T) {
	s := setupRegistry(t)

	name := "anything"
	_, err := s.Update(99999, &apTypes.UpdateActionPointRequest{Name: &name}, "admin-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDeactivate(t *testing.T) {
	s := setupRegistry(t)

	req := validRequest()
	created, err := s.Create(&req, "admin-1")
	require.NoError(t, err)

	require.NoError(t, s.Deactivate(created.ID, "admin-2"))

	fetched, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive)

	active, err := s.List(apTypes.ListActionPointsQuery{OnlyActive: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, s.Deactivate(99999, "admin-2"), gorm.ErrRecordNotFound)
}

func TestListFilters(t *testing.T) {
	s := setupRegistry(t)

	mess := validRequest()
	_, err := s.Create(&mess, "admin-1")
	require.NoError(t, err)

	library := validRequest()
	library.ActionType = "library_visit"
	library.QRMode = "mode_b"
	library.QRRotationMinutes = 0
	_, err = s.Create(&library, "admin-1")
	require.NoError(t, err)

	byType, err := s.List(apTypes.ListActionPointsQuery{ActionType: "library_visit"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "library_visit", byType[0].ActionType.String())

	byMode, err := s.List(apTypes.ListActionPointsQuery{QRMode: "mode_a"})
	require.NoError(t, err)
	require.Len(t, byMode, 1)
	assert.Equal(t, "mess_entry", byMode[0].ActionType.String())
}
