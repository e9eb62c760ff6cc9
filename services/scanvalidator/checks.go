package scanvalidator

import (
	"errors"
	"fmt"
	"time"

	"campus-access/models/actionpoint"
	"campus-access/models/device"
	"campus-access/models/scanlog"
	"campus-access/services/tokenissuer"
	"campus-access/utils"

	"gorm.io/gorm"
)

// Pipeline step 1: the token signature must verify and the payload must
// parse. A forged or mangled QR never reaches the database.
func (s *Service) checkTokenIntegrity(sc *scanContext) (*terminal, error) {
	claims, err := tokenissuer.Verify(sc.req.Token)
	if err != nil {
		if errors.Is(err, tokenissuer.ErrInvalidToken) {
			return stop(scanlog.ResultInvalidQR, "token signature or payload invalid"), nil
		}
		return nil, fmt.Errorf("%w: token verification: %v", ErrSystemFailure, err)
	}
	sc.claims = claims
	return nil, nil
}

// Pipeline step 2: the action point named by the token must exist
func (s *Service) checkActionPoint(sc *scanContext) (*terminal, error) {
	ap, err := s.Registry.Get(sc.claims.ActionPointID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stop(scanlog.ResultNoHandler, "no action point configured for token"), nil
		}
		return s.depFailure(sc, fmt.Errorf("action point lookup: %v", err))
	}
	sc.ap = ap
	return nil, nil
}

// Pipeline step 3: mode_a tokens must be inside their rotation window plus
// the configured grace; mode_b tokens fail only when explicitly retired.
func (s *Service) checkTokenFreshness(sc *scanContext) (*terminal, error) {
	switch sc.claims.Mode {
	case actionpoint.ModeA:
		if sc.claims.ExpiresAt == nil {
			return stop(scanlog.ResultInvalidQR, "rotating token without expiry"), nil
		}
		grace := tokenissuer.GraceWindow()
		if sc.now.After(sc.claims.ExpiresAt.Add(grace)) {
			return stop(scanlog.ResultExpiredToken, "token rotation window elapsed"), nil
		}
	case actionpoint.ModeB:
		retired, err := s.Issuer.IsRetired(sc.claims.JTI)
		if err != nil {
			return s.depFailure(sc, fmt.Errorf("token retirement lookup: %v", err))
		}
		if retired {
			return stop(scanlog.ResultExpiredToken, "static token has been regenerated"), nil
		}
	}
	return nil, nil
}

// Pipeline step 4: the action point must be active and inside its schedule
func (s *Service) checkSchedule(sc *scanContext) (*terminal, error) {
	if !sc.ap.IsActive {
		return stop(scanlog.ResultTimeViolation, "action point is deactivated"), nil
	}
	if !sc.ap.InSchedule(sc.now) {
		return stop(scanlog.ResultTimeViolation, "outside configured active hours"), nil
	}
	return nil, nil
}

// Pipeline step 5: the submitting device must be the user's active
// registration. A different active device is a mismatch; a device that was
// explicitly revoked or suspended reports as such; a user with no trust
// record at all lacks a required factor.
func (s *Service) checkDeviceBinding(sc *scanContext) (*terminal, error) {
	reg, err := s.Devices.GetActive(sc.req.UserID)
	if err != nil {
		return s.depFailure(sc, fmt.Errorf("device binding lookup: %v", err))
	}

	if reg == nil {
		prior, err := s.Devices.FindByUserAndDevice(sc.req.UserID, sc.req.DeviceID)
		if err != nil {
			return s.depFailure(sc, fmt.Errorf("device history lookup: %v", err))
		}
		if prior != nil && (prior.Status == device.StatusRevoked || prior.Status == device.StatusSuspended) {
			return stop(scanlog.ResultRevokedDevice, "device registration was revoked"), nil
		}
		return stop(scanlog.ResultUnauthorized, "no active device registration"), nil
	}

	if reg.DeviceID != sc.req.DeviceID {
		return stop(scanlog.ResultDeviceMismatch, "scan submitted from a device other than the registered one"), nil
	}
	return nil, nil
}

// Pipeline step 6: the security level decides which extra factors are
// mandatory. Standard needs nothing beyond steps 1-5. Elevated restates the
// active-device gate explicitly. Strict additionally demands geofence
// factors and a client attestation flag; a missing factor is unauthorized.
func (s *Service) checkSecurityPolicy(sc *scanContext) (*terminal, error) {
	switch sc.ap.SecurityLevel {
	case actionpoint.SecurityElevated, actionpoint.SecurityStrict:
		// The binding check has already guaranteed an active device; the
		// explicit gate is kept so the policy reads as written.
		reg, err := s.Devices.GetActive(sc.req.UserID)
		if err != nil {
			return s.depFailure(sc, fmt.Errorf("device policy lookup: %v", err))
		}
		if reg == nil || !reg.IsUsable() {
			return stop(scanlog.ResultUnauthorized, "active device required"), nil
		}
	}

	if sc.ap.SecurityLevel == actionpoint.SecurityStrict {
		if !sc.req.Attested {
			return stop(scanlog.ResultUnauthorized, "device attestation required"), nil
		}
		if !sc.ap.HasGeofence() || sc.req.GPSLat == nil || sc.req.GPSLon == nil {
			return stop(scanlog.ResultUnauthorized, "geofence verification required"), nil
		}
	}
	return nil, nil
}

// Pipeline step 7: when a geofence is configured and the scan carries GPS,
// the great-circle distance must be within the radius. The boundary is
// inclusive: exactly at the radius passes.
func (s *Service) checkGeofence(sc *scanContext) (*terminal, error) {
	if !sc.ap.HasGeofence() || sc.req.GPSLat == nil || sc.req.GPSLon == nil {
		return nil, nil
	}

	distance := utils.HaversineMeters(*sc.req.GPSLat, *sc.req.GPSLon, *sc.ap.GeoLat, *sc.ap.GeoLon)
	if distance > sc.ap.GeoRadiusMeters {
		reason := fmt.Sprintf("scan %0.0fm from action point, radius %0.0fm", distance, sc.ap.GeoRadiusMeters)
		return stop(scanlog.ResultGeoViolation, reason), nil
	}
	return nil, nil
}

// Pipeline step 8: a success already recorded for this user at this action
// point inside the trailing duplicate window suppresses the scan. The
// read here catches ordinary duplicates; the dedup key uniqueness on the
// commit catches the concurrent ones.
func (s *Service) checkDuplicate(sc *scanContext) (*terminal, error) {
	if sc.ap.DuplicateWindowMinutes <= 0 {
		return nil, nil
	}

	window := time.Duration(sc.ap.DuplicateWindowMinutes) * time.Minute
	found, err := s.Ledger.HasRecentSuccess(sc.req.UserID, sc.ap.ID, window, sc.now)
	if err != nil {
		return s.depFailure(sc, fmt.Errorf("duplicate lookup: %v", err))
	}
	if found {
		return stop(scanlog.ResultDuplicateScan, "successful scan already recorded within duplicate window"), nil
	}
	return nil, nil
}
