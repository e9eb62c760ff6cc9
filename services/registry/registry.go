package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"campus-access/models/actionpoint"
	apTypes "campus-access/types/actionpoint"

	"gorm.io/gorm"
)

// ErrValidation marks a rejected action point configuration. Config errors
// are caught here at write time, never deferred to scan time.
var ErrValidation = errors.New("invalid action point configuration")

// cacheTTL bounds how stale a cached action point may be. The registry is
// read-mostly; scans tolerate a short lag after an admin edit.
const cacheTTL = 30 * time.Second

type cacheEntry struct {
	ap        actionpoint.ActionPoint
	fetchedAt time.Time
}

// Service owns action point configuration
type Service struct {
	DB *gorm.DB

	mu    sync.RWMutex
	cache map[uint]cacheEntry
}

// NewRegistryService creates a new action point registry service
func NewRegistryService(db *gorm.DB) *Service {
	return &Service{
		DB:    db,
		cache: make(map[uint]cacheEntry),
	}
}

// Get returns the action point by id, served from the short-TTL cache when
// fresh. Returns gorm.ErrRecordNotFound when it does not exist.
func (s *Service) Get(id uint) (*actionpoint.ActionPoint, error) {
	s.mu.RLock()
	if entry, ok := s.cache[id]; ok && time.Since(entry.fetchedAt) < cacheTTL {
		s.mu.RUnlock()
		ap := entry.ap
		return &ap, nil
	}
	s.mu.RUnlock()

	var ap actionpoint.ActionPoint
	if err := s.DB.First(&ap, id).Error; err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[id] = cacheEntry{ap: ap, fetchedAt: time.Now()}
	s.mu.Unlock()

	return &ap, nil
}

// GetByLocationCode returns the action point with the given unique slug
func (s *Service) GetByLocationCode(code string) (*actionpoint.ActionPoint, error) {
	var ap actionpoint.ActionPoint
	if err := s.DB.Where("location_code = ?", code).First(&ap).Error; err != nil {
		return nil, err
	}
	return &ap, nil
}

// List returns action points matching the given filters
func (s *Service) List(query apTypes.ListActionPointsQuery) ([]actionpoint.ActionPoint, error) {
	db := s.DB.Model(&actionpoint.ActionPoint{})

	if query.ActionType != "" {
		db = db.Where("action_type = ?", query.ActionType)
	}
	if query.QRMode != "" {
		db = db.Where("qr_mode = ?", query.QRMode)
	}
	if query.OnlyActive {
		db = db.Where("is_active = ?", true)
	}

	var aps []actionpoint.ActionPoint
	if err := db.Order("location_code ASC").Find(&aps).Error; err != nil {
		return nil, err
	}
	return aps, nil
}

// Create validates and persists a new action point
func (s *Service) Create(req *apTypes.StoreActionPointRequest, createdBy string) (*actionpoint.ActionPoint, error) {
	level := actionpoint.SecurityLevel(req.SecurityLevel)
	if req.SecurityLevel == "" {
		level = actionpoint.SecurityStandard
	}

	ap := actionpoint.ActionPoint{
		Name:                   req.Name,
		LocationCode:           req.LocationCode,
		ActionType:             actionpoint.ActionType(req.ActionType),
		QRMode:                 actionpoint.QRMode(req.QRMode),
		SecurityLevel:          level,
		GeoLat:                 req.GeoLat,
		GeoLon:                 req.GeoLon,
		GeoRadiusMeters:        req.GeoRadiusMeters,
		QRRotationMinutes:      req.QRRotationMinutes,
		DuplicateWindowMinutes: req.DuplicateWindowMinutes,
		ActiveHoursStart:       req.ActiveHoursStart,
		ActiveHoursEnd:         req.ActiveHoursEnd,
		ActiveDays:             actionpoint.IntSlice(req.ActiveDays),
		IsActive:               true,
		CreatedBy:              createdBy,
	}

	if err := validateConfig(&ap); err != nil {
		return nil, err
	}

	if err := s.DB.Create(&ap).Error; err != nil {
		return nil, fmt.Errorf("failed to create action point: %w", err)
	}
	return &ap, nil
}

// Update applies the given changes and re-validates the resulting config
func (s *Service) Update(id uint, req *apTypes.UpdateActionPointRequest, updatedBy string) (*actionpoint.ActionPoint, error) {
	var ap actionpoint.ActionPoint
	if err := s.DB.First(&ap, id).Error; err != nil {
		return nil, err
	}

	if req.Name != nil {
		ap.Name = *req.Name
	}
	if req.SecurityLevel != nil {
		ap.SecurityLevel = actionpoint.SecurityLevel(*req.SecurityLevel)
	}
	if req.GeoLat != nil {
		ap.GeoLat = req.GeoLat
	}
	if req.GeoLon != nil {
		ap.GeoLon = req.GeoLon
	}
	if req.GeoRadiusMeters != nil {
		ap.GeoRadiusMeters = *req.GeoRadiusMeters
	}
	if req.QRRotationMinutes != nil {
		ap.QRRotationMinutes = *req.QRRotationMinutes
	}
	if req.DuplicateWindowMinutes != nil {
		ap.DuplicateWindowMinutes = *req.DuplicateWindowMinutes
	}
	if req.ActiveHoursStart != nil {
		ap.ActiveHoursStart = req.ActiveHoursStart
	}
	if req.ActiveHoursEnd != nil {
		ap.ActiveHoursEnd = req.ActiveHoursEnd
	}
	if req.ActiveDays != nil {
		ap.ActiveDays = actionpoint.IntSlice(req.ActiveDays)
	}
	ap.UpdatedBy = updatedBy

	if err := validateConfig(&ap); err != nil {
		return nil, err
	}

	if err := s.DB.Save(&ap).Error; err != nil {
		return nil, fmt.Errorf("failed to update action point: %w", err)
	}

	s.invalidate(id)
	return &ap, nil
}

// Deactivate soft-disables the action point. Rows are never hard-deleted so
// the scan ledger keeps its referential integrity.
func (s *Service) Deactivate(id uint, updatedBy string) error {
	res := s.DB.Model(&actionpoint.ActionPoint{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "updated_by": updatedBy})
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate action point: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	s.invalidate(id)
	return nil
}

func (s *Service) invalidate(id uint) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

// validateConfig enforces the policy invariants at write time
func validateConfig(ap *actionpoint.ActionPoint) error {
	if !ap.ActionType.IsValid() {
		return fmt.Errorf("%w: unknown action_type %q", ErrValidation, ap.ActionType)
	}
	if !ap.QRMode.IsValid() {
		return fmt.Errorf("%w: unknown qr_mode %q", ErrValidation, ap.QRMode)
	}
	if !ap.SecurityLevel.IsValid() {
		return fmt.Errorf("%w: unknown security_level %q", ErrValidation, ap.SecurityLevel)
	}
	if ap.QRMode == actionpoint.ModeA && ap.QRRotationMinutes <= 0 {
		return fmt.Errorf("%w: qr_rotation_minutes must be positive for mode_a", ErrValidation)
	}
	if (ap.GeoLat == nil) != (ap.GeoLon == nil) {
		return fmt.Errorf("%w: geo_lat and geo_lon must be set together", ErrValidation)
	}
	if ap.HasGeofence() && ap.GeoRadiusMeters <= 0 {
		return fmt.Errorf("%w: geo_radius_meters must be positive when a GPS point is configured", ErrValidation)
	}
	if ap.SecurityLevel.RequiresGeofence() && !ap.HasGeofence() {
		return fmt.Errorf("%w: strict action points require a configured geofence", ErrValidation)
	}
	if (ap.ActiveHoursStart == nil) != (ap.ActiveHoursEnd == nil) {
		return fmt.Errorf("%w: active_hours_start and active_hours_end must be set together", ErrValidation)
	}
	if ap.ActiveHoursStart != nil {
		if _, err := time.Parse("15:04", *ap.ActiveHoursStart); err != nil {
			return fmt.Errorf("%w: active_hours_start must be HH:MM", ErrValidation)
		}
		if _, err := time.Parse("15:04", *ap.ActiveHoursEnd); err != nil {
			return fmt.Errorf("%w: active_hours_end must be HH:MM", ErrValidation)
		}
	}
	for _, d := range ap.ActiveDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: active_days entries must be weekday indices 0-6", ErrValidation)
		}
	}
	return nil
}
