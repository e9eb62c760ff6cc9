package device

import "github.com/go-playground/validator/v10"

// RegisterDeviceRequest represents the request payload for binding a device to a user
type RegisterDeviceRequest struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	DeviceID string `json:"device_id" validate:"required,max=128"`
	Platform string `json:"platform" validate:"required,oneof=android ios"`
	Phone    string `json:"phone" validate:"required,min=10,max=20"`
}

func (req *RegisterDeviceRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(req)
}

// VerifyDeviceRequest represents the OTP confirmation payload
type VerifyDeviceRequest struct {
	UserID  string `json:"user_id" validate:"required,max=64"`
	OTPCode string `json:"otp_code" validate:"required,len=6"`
}

func (req *VerifyDeviceRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(req)
}

// ResetDeviceRequest represents an administrative device reset
type ResetDeviceRequest struct {
	UserID     string `json:"user_id" validate:"required,max=64"`
	Reason     string `json:"reason" validate:"required"`
	AdminNotes string `json:"admin_notes,omitempty"`
}

func (req *ResetDeviceRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(req)
}

// RegistrationResponse is the wire form of a device registration
type RegistrationResponse struct {
	UserID        string `json:"user_id"`
	DeviceID      string `json:"device_id"`
	Platform      string `json:"platform"`
	Status        string `json:"status"`
	VerifiedPhone string `json:"verified_phone"`
	ResetCount    int    `json:"reset_count"`
	OTPExpiresAt  string `json:"otp_expires_at,omitempty"`
}
