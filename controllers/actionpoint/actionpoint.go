package actionpoint

import (
	"errors"
	"time"

	"campus-access/logger"
	"campus-access/middleware"
	"campus-access/services/registry"
	"campus-access/types"
	apTypes "campus-access/types/actionpoint"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Controller handles action point administration HTTP requests
type Controller struct {
	DB       *gorm.DB
	Logger   *logger.AsyncLogger
	Registry *registry.Service
}

// NewActionPointController creates a new action point controller
func NewActionPointController(db *gorm.DB, asyncLogger *logger.AsyncLogger, reg *registry.Service) *Controller {
	return &Controller{
		DB:       db,
		Logger:   asyncLogger,
		Registry: reg,
	}
}

// StoreActionPoint creates a new action point
func (ac *Controller) StoreActionPoint(c *fiber.Ctx) error {
	var req apTypes.StoreActionPointRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse action point request body", err)
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

	userID := middleware.UserIDFromCtx(c)
	ap, err := ac.Registry.Create(&req, userID)
	if err != nil {
		if errors.Is(err, registry.ErrValidation) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(types.ApiResponse{
				Status:  fiber.StatusUnprocessableEntity,
				Message: err.Error(),
				Data:    nil,
			})
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
				Status:  fiber.StatusConflict,
				Message: "Location code already exists",
				Data:    nil,
			})
		}
		logger.Error("Failed to create action point", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to create action point",
			Data:    nil,
		})
	}

	ac.Logger.Log(types.LogEntry{
		Method:       c.Method(),
		URL:          c.OriginalURL(),
		UserID:       userID,
		RequestBody:  string(c.Body()),
		ResponseBody: "action point created",
		StatusCode:   fiber.StatusCreated,
		CreatedAt:    time.Now(),
	})

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Action point created successfully",
		Data:    ap,
	})
}

// GetActionPoint returns a single action point by id
func (ac *Controller) GetActionPoint(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid action point id",
			Data:    nil,
		})
	}

	ap, err := ac.Registry.Get(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Status:  fiber.StatusNotFound,
				Message: "Action point not found",
				Data:    nil,
			})
		}
		logger.Error("Failed to fetch action point", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to fetch action point",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Action point fetched successfully",
		Data:    ap,
	})
}

// ListActionPoints returns action points matching the query filters
func (ac *Controller) ListActionPoints(c *fiber.Ctx) error {
	var query apTypes.ListActionPointsQuery
	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid query parameters",
			Data:    nil,
		})
	}

	aps, err := ac.Registry.List(query)
	if err != nil {
		logger.Error("Failed to list action points", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to list action points",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Action points fetched successfully",
		Data:    aps,
	})
}

// UpdateActionPoint edits an existing action point and re-validates the
// resulting configuration
func (ac *Controller) UpdateActionPoint(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid action point id",
			Data:    nil,
		})
	}

	var req apTypes.UpdateActionPointRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse action point update body", err)
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

	userID := middleware.UserIDFromCtx(c)
	ap, err := ac.Registry.Update(uint(id), &req, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Status:  fiber.StatusNotFound,
				Message: "Action point not found",
				Data:    nil,
			})
		}
		if errors.Is(err, registry.ErrValidation) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(types.ApiResponse{
				Status:  fiber.StatusUnprocessableEntity,
				Message: err.Error(),
				Data:    nil,
			})
		}
		logger.Error("Failed to update action point", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to update action point",
			Data:    nil,
		})
	}

	ac.Logger.Log(types.LogEntry{
		Method:       c.Method(),
		URL:          c.OriginalURL(),
		UserID:       userID,
		RequestBody:  string(c.Body()),
		ResponseBody: "action point updated",
		StatusCode:   fiber.StatusOK,
		CreatedAt:    time.Now(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Action point updated successfully",
		Data:    ap,
	})
}

// DeactivateActionPoint soft-disables an action point; subsequent scans at
// it report a time violation
func (ac *Controller) DeactivateActionPoint(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid action point id",
			Data:    nil,
		})
	}

	userID := middleware.UserIDFromCtx(c)
	if err := ac.Registry.Deactivate(uint(id), userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Status:  fiber.StatusNotFound,
				Message: "Action point not found",
				Data:    nil,
			})
		}
		logger.Error("Failed to deactivate action point", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to deactivate action point",
			Data:    nil,
		})
	}

	ac.Logger.Log(types.LogEntry{
		Method:       c.Method(),
		URL:          c.OriginalURL(),
		UserID:       userID,
		ResponseBody: "action point deactivated",
		StatusCode:   fiber.StatusOK,
		CreatedAt:    time.Now(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Action point deactivated successfully",
		Data:    nil,
	})
}
