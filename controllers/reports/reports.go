package reports

import (
	"strconv"
	"time"

	"campus-access/logger"
	"campus-access/services/anomaly"
	"campus-access/services/ledger"
	"campus-access/types"
	scanlogTypes "campus-access/types/scanlog"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Controller handles ledger and anomaly dashboard HTTP requests
type Controller struct {
	DB       *gorm.DB
	Logger   *logger.AsyncLogger
	Ledger   *ledger.Service
	Detector *anomaly.Service
}

// NewReportsController creates a new reports controller
func NewReportsController(db *gorm.DB, asyncLogger *logger.AsyncLogger, led *ledger.Service, detector *anomaly.Service) *Controller {
	return &Controller{
		DB:       db,
		Logger:   asyncLogger,
		Ledger:   led,
		Detector: detector,
	}
}

// ListScanLogs returns ledger rows matching the query filters, newest first
func (rc *Controller) ListScanLogs(c *fiber.Ctx) error {
	var query scanlogTypes.ListScanLogsQuery
	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid query parameters",
			Data:    nil,
		})
	}

	rows, err := rc.Ledger.List(query)
	if err != nil {
		logger.Error("Failed to list scan logs", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to list scan logs",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Scan logs fetched successfully",
		Data:    rows,
	})
}

// ScanSummary returns the daily counts by action type plus the failure
// breakdown for the dashboard
func (rc *Controller) ScanSummary(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days", "7"))
	if err != nil || days <= 0 || days > 90 {
		days = 7
	}

	dailyCounts, err := rc.Ledger.DailySummary(days)
	if err != nil {
		logger.Error("Failed to build scan summary", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to build scan summary",
			Data:    nil,
		})
	}

	since := time.Now().AddDate(0, 0, -days)
	failures, err := rc.Ledger.FailureBreakdown(since)
	if err != nil {
		logger.Error("Failed to build failure breakdown", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to build failure breakdown",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Scan summary fetched successfully",
		Data: scanlogTypes.SummaryResponse{
			Days:     dailyCounts,
			Failures: failures,
		},
	})
}

// Anomalies returns the detector's recent flags with an optional generated
// digest for the dashboard header
func (rc *Controller) Anomalies(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil {
		limit = 50
	}

	flags, err := rc.Detector.Flags(limit)
	if err != nil {
		logger.Error("Failed to list anomaly flags", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to list anomaly flags",
			Data:    nil,
		})
	}

	resp := scanlogTypes.AnomalyReportResponse{Flags: flags}
	if c.QueryBool("digest") {
		resp.Digest = anomaly.GenerateDigest(flags)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Anomaly flags fetched successfully",
		Data:    resp,
	})
}
