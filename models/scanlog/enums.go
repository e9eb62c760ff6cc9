package scanlog

// ValidationResult is the closed set of scan outcomes returned by the
// validation engine. Dashboards and the mobile app branch on these literal
// strings, so values must never be renamed or extended casually.
type ValidationResult string

const (
	ResultSuccess        ValidationResult = "success"
	ResultDuplicateScan  ValidationResult = "duplicate_scan"
	ResultExpiredToken   ValidationResult = "expired_token"
	ResultDeviceMismatch ValidationResult = "device_mismatch"
	ResultGeoViolation   ValidationResult = "geo_violation"
	ResultTimeViolation  ValidationResult = "time_violation"
	ResultRevokedDevice  ValidationResult = "revoked_device"
	ResultUnauthorized   ValidationResult = "unauthorized"
	ResultInvalidQR      ValidationResult = "invalid_qr"
	ResultNoHandler      ValidationResult = "no_handler"
)

// Helper methods for ValidationResult
func (vr ValidationResult) String() string {
	return string(vr)
}

func (vr ValidationResult) IsValid() bool {
	switch vr {
	case ResultSuccess, ResultDuplicateScan, ResultExpiredToken, ResultDeviceMismatch,
		ResultGeoViolation, ResultTimeViolation, ResultRevokedDevice, ResultUnauthorized,
		ResultInvalidQR, ResultNoHandler:
		return true
	default:
		return false
	}
}

// IsRejection returns true for every outcome except success
func (vr ValidationResult) IsRejection() bool {
	return vr != ResultSuccess
}

// GetAllValidationResults returns all valid scan outcomes
func GetAllValidationResults() []ValidationResult {
	return []ValidationResult{
		ResultSuccess,
		ResultDuplicateScan,
		ResultExpiredToken,
		ResultDeviceMismatch,
		ResultGeoViolation,
		ResultTimeViolation,
		ResultRevokedDevice,
		ResultUnauthorized,
		ResultInvalidQR,
		ResultNoHandler,
	}
}
