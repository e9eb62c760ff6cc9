package scanvalidator

import (
	"errors"
	"fmt"
	"os"
	"time"

	"campus-access/logger"
	"campus-access/models/actionpoint"
	"campus-access/models/scanlog"
	"campus-access/services/devicetrust"
	"campus-access/services/ledger"
	"campus-access/services/registry"
	"campus-access/services/tokenissuer"
	scanTypes "campus-access/types/scan"
	"campus-access/utils"

	"gorm.io/gorm"
)

// ErrSystemFailure marks infrastructure problems (store unavailable,
// signing key misconfigured). These are deliberately NOT part of the
// validation_result taxonomy: they surface as transport-level failures so
// clients can retry with the same scan_event_id.
var ErrSystemFailure = errors.New("scan validation system failure")

// Decision is the outcome of one scan attempt
type Decision struct {
	Result      scanlog.ValidationResult
	Reason      string
	ActionPoint *actionpoint.ActionPoint
	Log         *scanlog.ScanLog

	// Replayed is true when the scan_event_id had already been processed
	// and the stored outcome was returned without re-running the pipeline.
	Replayed bool
}

// Service is the scan decision engine. It owns no persistent state of its
// own: it orchestrates reads across the registry, device trust store and
// ledger, and writes exactly one ledger row per scan attempt.
type Service struct {
	Registry *registry.Service
	Devices  *devicetrust.Service
	Ledger   *ledger.Service
	Issuer   *tokenissuer.Service

	effects *EffectRegistry

	// failOpenStandard lets standard-level action points accept scans when
	// a dependency read fails, trading strictness for availability.
	// Elevated and strict always fail closed.
	failOpenStandard bool

	// now is swapped out in tests
	now func() time.Time
}

// NewScanValidator creates a new scan validation service
func NewScanValidator(reg *registry.Service, devices *devicetrust.Service, led *ledger.Service, issuer *tokenissuer.Service) *Service {
	return &Service{
		Registry:         reg,
		Devices:          devices,
		Ledger:           led,
		Issuer:           issuer,
		effects:          NewEffectRegistry(),
		failOpenStandard: os.Getenv("STANDARD_FAIL_OPEN") == "true",
		now:              time.Now,
	}
}

// Effects exposes the effect handler registry so collaborators can attach
// their side effects per action type.
func (s *Service) Effects() *EffectRegistry {
	return s.effects
}

// scanContext accumulates state while the pipeline runs
type scanContext struct {
	req    *scanTypes.ValidateScanRequest
	now    time.Time
	claims *tokenissuer.Claims
	ap     *actionpoint.ActionPoint
}

// terminal is a pipeline stop: the first failing check decides the outcome
type terminal struct {
	result scanlog.ValidationResult
	reason string
}

func stop(result scanlog.ValidationResult, reason string) *terminal {
	return &terminal{result: result, reason: reason}
}

// Validate runs the ordered check pipeline for one scan event. The
// outcomes are mutually exclusive: a scan reports the first failing check
// and nothing after it runs. Exactly one ledger row is written per attempt,
// durably, before the result is returned.
func (s *Service) Validate(req *scanTypes.ValidateScanRequest) (*Decision, error) {
	// Idempotent retry: a scan_event_id we have already decided returns the
	// stored outcome without re-executing anything.
	existing, err := s.Ledger.FindByScanEventID(req.ScanEventID)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger lookup: %v", ErrSystemFailure, err)
	}
	if existing != nil {
		return s.replay(existing), nil
	}

	sc := &scanContext{req: req, now: s.now()}

	checks := []func(*scanContext) (*terminal, error){
		s.checkTokenIntegrity,
		s.checkActionPoint,
		s.checkTokenFreshness,
		s.checkSchedule,
		s.checkDeviceBinding,
		s.checkSecurityPolicy,
		s.checkGeofence,
		s.checkDuplicate,
	}

	for _, check := range checks {
		t, err := check(sc)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return s.commit(sc, t.result, t.reason)
		}
	}

	return s.commit(sc, scanlog.ResultSuccess, "")
}

// commit writes the single ledger row for this attempt and, on success,
// fires the registered action effect. Uniqueness constraints on the row
// resolve races: a concurrent identical event id replays the stored result,
// a concurrent success in the same duplicate bucket demotes this attempt to
// duplicate_scan.
func (s *Service) commit(sc *scanContext, result scanlog.ValidationResult, reason string) (*Decision, error) {
	row := s.buildRow(sc, result, reason)

	if err := s.Ledger.Append(row); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: ledger append: %v", ErrSystemFailure, err)
		}

		// Same scan_event_id won the race: return its stored outcome.
		stored, lookupErr := s.Ledger.FindByScanEventID(sc.req.ScanEventID)
		if lookupErr != nil {
			return nil, fmt.Errorf("%w: ledger lookup after conflict: %v", ErrSystemFailure, lookupErr)
		}
		if stored != nil {
			return s.replay(stored), nil
		}

		// Otherwise the dedup key collided: another scan in the same window
		// bucket committed success first. This attempt becomes the
		// duplicate.
		row = s.buildRow(sc, scanlog.ResultDuplicateScan, "concurrent duplicate suppressed")
		if err := s.Ledger.Append(row); err != nil {
			return nil, fmt.Errorf("%w: ledger append: %v", ErrSystemFailure, err)
		}
		result = scanlog.ResultDuplicateScan
	}

	decision := &Decision{
		Result:      result,
		Reason:      derefReason(row.RejectionReason),
		ActionPoint: sc.ap,
		Log:         row,
	}

	if result == scanlog.ResultSuccess {
		s.runEffect(sc, row)
	}

	return decision, nil
}

func (s *Service) buildRow(sc *scanContext, result scanlog.ValidationResult, reason string) *scanlog.ScanLog {
	row := &scanlog.ScanLog{
		ScanEventID:     sc.req.ScanEventID,
		UserID:          sc.req.UserID,
		DeviceID:        sc.req.DeviceID,
		GPSLat:          sc.req.GPSLat,
		GPSLon:          sc.req.GPSLon,
		ClientTimestamp: utils.ParseClientTimestamp(sc.req.ClientTimestamp),
		ServerTimestamp: sc.now,
		Result:          result,
	}
	if sc.claims != nil {
		row.TokenJTI = sc.claims.JTI
	}
	if sc.ap != nil {
		row.ActionPointID = sc.ap.ID
	}
	if reason != "" {
		row.RejectionReason = &reason
	}
	if result == scanlog.ResultSuccess && sc.ap != nil {
		key := utils.DedupKey(sc.req.UserID, sc.ap.ID, sc.now, sc.ap.DuplicateWindowMinutes)
		row.DedupKey = &key
	}
	return row
}

func (s *Service) runEffect(sc *scanContext, row *scanlog.ScanLog) {
	handler, ok := s.effects.Get(sc.ap.ActionType)
	if !ok {
		return
	}
	if err := handler(row, sc.ap); err != nil {
		// Effects belong to external collaborators; the scan decision is
		// already durable and stands regardless.
		logger.Error(fmt.Sprintf("Action effect for %s failed", sc.ap.ActionType), err)
	}
}

func (s *Service) replay(row *scanlog.ScanLog) *Decision {
	return &Decision{
		Result:   row.Result,
		Reason:   derefReason(row.RejectionReason),
		Log:      row,
		Replayed: true,
	}
}

// depFailure applies the dependency failure policy. Before the action point
// is resolved nothing is known about the security level, so the failure is
// always a system error. Afterwards: standard may fail open when configured,
// elevated and strict fail closed as unauthorized.
func (s *Service) depFailure(sc *scanContext, err error) (*terminal, error) {
	if sc.ap == nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemFailure, err)
	}
	if sc.ap.SecurityLevel == actionpoint.SecurityStandard {
		if s.failOpenStandard {
			logger.Warning(fmt.Sprintf("Dependency failure at standard action point %d; failing open: %v", sc.ap.ID, err))
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSystemFailure, err)
	}
	return stop(scanlog.ResultUnauthorized, "dependency unavailable, access denied"), nil
}

func derefReason(r *string) string {
	if r == nil {
		return ""
	}
	return *r
}
