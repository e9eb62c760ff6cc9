package devicetrust

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"campus-access/httpServices/sms"
	"campus-access/logger"
	"campus-access/models/device"
	"campus-access/models/otp"
	"campus-access/utils"

	"gorm.io/gorm"
)

var (
	// ErrNoPendingRegistration is returned when verification is attempted
	// without an outstanding pending registration.
	ErrNoPendingRegistration = errors.New("no pending device registration for user")
	// ErrOTPInvalid covers a wrong, expired or blocked verification code.
	ErrOTPInvalid = errors.New("invalid or expired OTP")
)

// Service enforces the single-active-device invariant: at most one
// registration per user is active, and every transition is recorded as a
// status event.
type Service struct {
	DB  *gorm.DB
	SMS *sms.Client
}

// NewDeviceTrustService creates a new device trust service
func NewDeviceTrustService(db *gorm.DB) *Service {
	return &Service{
		DB:  db,
		SMS: sms.NewClient(os.Getenv("SMS_GATEWAY_URL")),
	}
}

// GenerateOTP generates a random 6-digit verification code
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Register starts a device binding: any prior pending registration is
// expired, a fresh pending_sms_verification row is created and a
// verification code is sent to the phone.
func (s *Service) Register(userID, deviceID, platform, phone, createdBy string) (*device.Registration, *otp.OTP, error) {
	var reg device.Registration
	var otpRecord *otp.OTP

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Supersede any outstanding pending registration for the user.
		var pending []device.Registration
		if err := tx.Where("user_id = ? AND status = ?", userID, device.StatusPendingSMSVerification).
			Find(&pending).Error; err != nil {
			return err
		}
		for i := range pending {
			pending[i].Status = device.StatusExpired
			pending[i].UpdatedBy = createdBy
			if err := tx.Save(&pending[i]).Error; err != nil {
				return err
			}
			if err := appendStatusEvent(tx, &pending[i], "superseded by new registration", nil, createdBy); err != nil {
				return err
			}
		}

		// Carry the reset history forward from the most recent registration.
		resetCount := 0
		var lastResetAt *time.Time
		var latest device.Registration
		err := tx.Where("user_id = ?", userID).Order("created_at DESC").First(&latest).Error
		if err == nil {
			resetCount = latest.ResetCount
			lastResetAt = latest.LastResetAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		reg = device.Registration{
			UserID:        userID,
			DeviceID:      deviceID,
			Platform:      platform,
			VerifiedPhone: phone,
			Status:        device.StatusPendingSMSVerification,
			ResetCount:    resetCount,
			LastResetAt:   lastResetAt,
			CreatedBy:     createdBy,
		}
		if err := tx.Create(&reg).Error; err != nil {
			return fmt.Errorf("failed to create device registration: %w", err)
		}
		if err := appendStatusEvent(tx, &reg, "registration started", nil, createdBy); err != nil {
			return err
		}

		record, err := s.createOTP(tx, &reg, otp.OTPPurposeDeviceRegistration)
		if err != nil {
			return err
		}
		otpRecord = record
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return &reg, otpRecord, nil
}

// Verify confirms the SMS code and promotes the pending registration to
// active. Any previously active device for the user is transferred out in
// the same transaction, keeping the single-active-device invariant.
func (s *Service) Verify(userID, code string) (*device.Registration, error) {
	var reg device.Registration

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND status = ?", userID, device.StatusPendingSMSVerification).
			Order("created_at DESC").
			First(&reg).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoPendingRegistration
			}
			return err
		}

		var otpRecord otp.OTP
		err = tx.Where("registration_id = ? AND is_used = ?", reg.ID, false).
			Order("created_at DESC").
			First(&otpRecord).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOTPInvalid
			}
			return err
		}

		if !otpRecord.IsValid() || otpRecord.IsCurrentlyBlocked() {
			return ErrOTPInvalid
		}

		expected, err := utils.DecryptData(otpRecord.OTPCodeEncrypted)
		if err != nil {
			return fmt.Errorf("failed to decrypt OTP: %w", err)
		}
		if expected != code {
			otpRecord.IncrementRetry()
			if err := tx.Save(&otpRecord).Error; err != nil {
				return err
			}
			if otpRecord.IsBlocked {
				reg.Status = device.StatusVerificationFailed
				reg.UpdatedBy = userID
				if err := tx.Save(&reg).Error; err != nil {
					return err
				}
				if err := appendStatusEvent(tx, &reg, "verification blocked after max retries", nil, userID); err != nil {
					return err
				}
			}
			return ErrOTPInvalid
		}

		otpRecord.IsUsed = true
		if err := tx.Save(&otpRecord).Error; err != nil {
			return err
		}

		// Transfer out the previously active device, if any.
		var active device.Registration
		err = tx.Where("user_id = ? AND status = ?", userID, device.StatusActive).First(&active).Error
		if err == nil {
			active.Status = device.StatusTransferred
			active.UpdatedBy = userID
			if err := tx.Save(&active).Error; err != nil {
				return err
			}
			if err := appendStatusEvent(tx, &active, "replaced by newly verified device", nil, userID); err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		verifiedAt := time.Now()
		reg.Status = device.StatusActive
		reg.VerifiedAt = &verifiedAt
		reg.UpdatedBy = userID
		if err := tx.Save(&reg).Error; err != nil {
			return err
		}
		return appendStatusEvent(tx, &reg, "sms verification passed", nil, userID)
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetActive returns the user's active registration, or nil when none exists
func (s *Service) GetActive(userID string) (*device.Registration, error) {
	var reg device.Registration
	err := s.DB.Where("user_id = ? AND status = ?", userID, device.StatusActive).First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reg, nil
}

// FindByUserAndDevice returns the most recent registration row for the
// exact (user, device) pair, regardless of status. The validator uses it to
// distinguish a revoked device from an unknown one.
func (s *Service) FindByUserAndDevice(userID, deviceID string) (*device.Registration, error) {
	var reg device.Registration
	err := s.DB.Where("user_id = ? AND device_id = ?", userID, deviceID).
		Order("created_at DESC").
		First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reg, nil
}

// Reset is the administrative device reset: the current binding is revoked
// and a fresh pending registration with an incremented reset count is
// created. The reset history feeds anomaly scoring.
func (s *Service) Reset(userID, reason, adminNotes, adminID string) (*device.Registration, *otp.OTP, error) {
	var fresh device.Registration
	var otpRecord *otp.OTP

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var current device.Registration
		err := tx.Where("user_id = ? AND status IN ?", userID,
			[]device.RegistrationStatus{device.StatusActive, device.StatusPendingSMSVerification}).
			Order("created_at DESC").
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return gorm.ErrRecordNotFound
			}
			return err
		}

		now := time.Now()
		current.Status = device.StatusRevoked
		current.RevokedAt = &now
		current.UpdatedBy = adminID
		if err := tx.Save(&current).Error; err != nil {
			return err
		}
		notes := adminNotes
		if err := appendStatusEvent(tx, &current, reason, &notes, adminID); err != nil {
			return err
		}

		fresh = device.Registration{
			UserID:        userID,
			DeviceID:      current.DeviceID,
			Platform:      current.Platform,
			VerifiedPhone: current.VerifiedPhone,
			Status:        device.StatusPendingSMSVerification,
			ResetCount:    current.ResetCount + 1,
			LastResetAt:   &now,
			CreatedBy:     adminID,
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return fmt.Errorf("failed to create replacement registration: %w", err)
		}
		if err := appendStatusEvent(tx, &fresh, "pending after admin reset", &notes, adminID); err != nil {
			return err
		}

		record, err := s.createOTP(tx, &fresh, otp.OTPPurposeDeviceReset)
		if err != nil {
			return err
		}
		otpRecord = record
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &fresh, otpRecord, nil
}

// ResetCountSince counts revocations for the user inside the trailing
// window. Used by the anomaly detector.
func (s *Service) ResetCountSince(userID string, since time.Time) (int64, error) {
	var count int64
	err := s.DB.Model(&device.StatusEvent{}).
		Where("user_id = ? AND status = ? AND created_at >= ?", userID, device.StatusRevoked, since).
		Count(&count).Error
	return count, err
}

// UsersWithResetsSince returns per-user revocation counts inside the
// trailing window, for anomaly scoring.
func (s *Service) UsersWithResetsSince(since time.Time, threshold int64) (map[string]int64, error) {
	var rows []struct {
		UserID string
		Total  int64
	}
	err := s.DB.Model(&device.StatusEvent{}).
		Select("user_id AS user_id, COUNT(*) AS total").
		Where("status = ? AND created_at >= ?", device.StatusRevoked, since).
		Group("user_id").
		Having("COUNT(*) >= ?", threshold).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.Total
	}
	return out, nil
}

// createOTP generates, encrypts and stores a verification code for the
// registration and sends it out of band. SMS delivery failure does not fail
// the registration; the code is logged for manual fallback.
func (s *Service) createOTP(tx *gorm.DB, reg *device.Registration, purpose otp.OTPPurpose) (*otp.OTP, error) {
	code, err := GenerateOTP()
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	encrypted, err := utils.EncryptData(code)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt OTP: %w", err)
	}

	// Invalidate any outstanding codes for this registration.
	if err := tx.Model(&otp.OTP{}).
		Where("registration_id = ? AND is_used = ?", reg.ID, false).
		Update("is_used", true).Error; err != nil {
		return nil, fmt.Errorf("failed to invalidate existing OTPs: %w", err)
	}

	record := &otp.OTP{
		RegistrationID:   reg.ID,
		Phone:            reg.VerifiedPhone,
		OTPCodeEncrypted: encrypted,
		Purpose:          purpose,
		MaxRetries:       3,
		ExpiresAt:        time.Now().Add(5 * time.Minute),
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create OTP record: %w", err)
	}

	if err := s.SMS.SendOTP(reg.VerifiedPhone, code); err != nil {
		logger.Error(fmt.Sprintf("Failed to send OTP SMS to %s", reg.VerifiedPhone), err)
	}

	return record, nil
}

func appendStatusEvent(tx *gorm.DB, reg *device.Registration, reason string, adminNotes *string, createdBy string) error {
	event := device.StatusEvent{
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
		Status:         reg.Status,
		Reason:         reason,
		AdminNotes:     adminNotes,
		CreatedBy:      createdBy,
	}
	return tx.Create(&event).Error
}
