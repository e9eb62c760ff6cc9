package device

import (
	"errors"
	"time"

	"campus-access/logger"
	"campus-access/middleware"
	deviceModel "campus-access/models/device"
	"campus-access/models/otp"
	"campus-access/services/devicetrust"
	"campus-access/types"
	deviceTypes "campus-access/types/device"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Controller handles device trust HTTP requests
type Controller struct {
	DB      *gorm.DB
	Logger  *logger.AsyncLogger
	Devices *devicetrust.Service
}

// NewDeviceController creates a new device controller
func NewDeviceController(db *gorm.DB, asyncLogger *logger.AsyncLogger, devices *devicetrust.Service) *Controller {
	return &Controller{
		DB:      db,
		Logger:  asyncLogger,
		Devices: devices,
	}
}

// RegisterDevice starts a device binding and sends the SMS verification code
func (dc *Controller) RegisterDevice(c *fiber.Ctx) error {
	var req deviceTypes.RegisterDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse device registration body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(types.ApiResponse{
			Status:  fiber.StatusUnprocessableEntity,
			Message: err.Error(),
			Data:    nil,
		})
	}

	reg, otpRecord, err := dc.Devices.Register(req.UserID, req.DeviceID, req.Platform, req.Phone, req.UserID)
	if err != nil {
		logger.Error("Failed to register device", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to register device",
			Data:    nil,
		})
	}

	dc.Logger.Log(types.LogEntry{
		Method:       c.Method(),
		URL:          c.OriginalURL(),
		UserID:       req.UserID,
		ResponseBody: "device registration started",
		StatusCode:   fiber.StatusCreated,
		CreatedAt:    time.Now(),
	})

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Verification code sent",
		Data:    toResponse(reg, otpRecord),
	})
}

// VerifyDevice confirms the SMS code and activates the pending registration
func (dc *Controller) VerifyDevice(c *fiber.Ctx) error {
	var req deviceTypes.VerifyDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse device verification body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(types.ApiResponse{
			Status:  fiber.StatusUnprocessableEntity,
			Message: err.Error(),
			Data:    nil,
		})
	}

	reg, err := dc.Devices.Verify(req.UserID, req.OTPCode)
	if err != nil {
		if errors.Is(err, devicetrust.ErrNoPendingRegistration) {
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Status:  fiber.StatusNotFound,
				Message: err.Error(),
				Data:    nil,
			})
		}
		if errors.Is(err, devicetrust.ErrOTPInvalid) {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
				Status:  fiber.StatusUnauthorized,
				Message: "Invalid or expired verification code",
				Data:    nil,
			})
		}
		logger.Error("Failed to verify device", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to verify device",
			Data:    nil,
		})
	}

	dc.Logger.Log(types.LogEntry{
		Method:       c.Method(),
		URL:          c.OriginalURL(),
		UserID:       req.UserID,
		ResponseBody: "device verified",
		StatusCode:   fiber.StatusOK,
		CreatedAt:    time.Now(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Device verified successfully",
		Data:    toResponse(reg, nil),
	})
}

// GetActiveDevice returns the user's currently active registration
func (dc *Controller) GetActiveDevice(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "User id is required",
			Data:    nil,
		})
	}

	reg, err := dc.Devices.GetActive(userID)
	if err != nil {
		logger.Error("Failed to fetch active device", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to fetch active device",
			Data:    nil,
		})
	}
	if reg == nil {
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Message: "No active device registration",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Active device fetched successfully",
		Data:    toResponse(reg, nil),
	})
}

// ResetDevice revokes the user's current binding and starts a fresh
// verification cycle. Admin-only; feeds the anomaly reset counter.
func (dc *Controller) ResetDevice(c *fiber.Ctx) error {
	var req deviceTypes.ResetDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse device reset body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(types.ApiResponse{
			Status:  fiber.StatusUnprocessableEntity,
			Message: err.Error(),
			Data:    nil,
		})
	}

	adminID := middleware.UserIDFromCtx(c)
	reg, otpRecord, err := dc.Devices.Reset(req.UserID, req.Reason, req.AdminNotes, adminID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Status:  fiber.StatusNotFound,
				Message: "No active or pending registration to reset",
				Data:    nil,
			})
		}
		logger.Error("Failed to reset device", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to reset device",
			Data:    nil,
		})
	}

	dc.Logger.Log(types.LogEntry{
		Method:       c.Method(),
		URL:          c.OriginalURL(),
		UserID:       adminID,
		RequestBody:  string(c.Body()),
		ResponseBody: "device reset",
		StatusCode:   fiber.StatusOK,
		CreatedAt:    time.Now(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Device reset, verification code sent",
		Data:    toResponse(reg, otpRecord),
	})
}

func toResponse(reg *deviceModel.Registration, otpRecord *otp.OTP) deviceTypes.RegistrationResponse {
	resp := deviceTypes.RegistrationResponse{
		UserID:        reg.UserID,
		DeviceID:      reg.DeviceID,
		Platform:      reg.Platform,
		Status:        reg.Status.String(),
		VerifiedPhone: reg.VerifiedPhone,
		ResetCount:    reg.ResetCount,
	}
	if otpRecord != nil {
		resp.OTPExpiresAt = otpRecord.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}
