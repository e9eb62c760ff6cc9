package scan

import (
	"time"

	"campus-access/logger"
	"campus-access/services/scanvalidator"
	"campus-access/types"
	scanTypes "campus-access/types/scan"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Controller handles scan validation HTTP requests
type Controller struct {
	DB        *gorm.DB
	Logger    *logger.AsyncLogger
	Validator *scanvalidator.Service
}

// NewScanController creates a new scan controller
func NewScanController(db *gorm.DB, asyncLogger *logger.AsyncLogger, validator *scanvalidator.Service) *Controller {
	return &Controller{
		DB:        db,
		Logger:    asyncLogger,
		Validator: validator,
	}
}

// ValidateScan runs the decision pipeline for one submitted scan event.
// Every policy outcome, success included, returns HTTP 200 with the
// validation_result the caller branches on; only system failures surface
// as 5xx so the device can retry with the same scan_event_id.
func (sc *Controller) ValidateScan(c *fiber.Ctx) error {
	var req scanTypes.ValidateScanRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse scan request body", err)
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

	decision, err := sc.Validator.Validate(&req)
	if err != nil {
		logger.Error("Scan validation system failure", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(types.ApiResponse{
			Status:  fiber.StatusServiceUnavailable,
			Message: "Validation temporarily unavailable, retry with the same scan_event_id",
			Data:    nil,
		})
	}

	resp := scanTypes.ScanResultResponse{
		ValidationResult: decision.Result.String(),
		RejectionReason:  decision.Reason,
		ScanEventID:      req.ScanEventID,
		ServerTimestamp:  decision.Log.ServerTimestamp.Format(time.RFC3339),
	}
	if decision.ActionPoint != nil {
		resp.ActionPointID = decision.ActionPoint.ID
		resp.ActionType = decision.ActionPoint.ActionType.String()
	}

	sc.Logger.Log(types.LogEntry{
		Method:       c.Method(),
		URL:          c.OriginalURL(),
		UserID:       req.UserID,
		RequestBody:  string(c.Body()),
		ResponseBody: decision.Result.String(),
		StatusCode:   fiber.StatusOK,
		CreatedAt:    time.Now(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Scan processed",
		Data:    resp,
	})
}
