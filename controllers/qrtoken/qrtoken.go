package qrtoken

import (
	"errors"
	"time"

	"campus-access/logger"
	"campus-access/middleware"
	"campus-access/models/qrtoken"
	"campus-access/services/tokenissuer"
	"campus-access/types"
	qrTypes "campus-access/types/qrtoken"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Controller handles QR token issuance HTTP requests
type Controller struct {
	DB     *gorm.DB
	Logger *logger.AsyncLogger
	Issuer *tokenissuer.Service
}

// NewQRTokenController creates a new QR token controller
func NewQRTokenController(db *gorm.DB, asyncLogger *logger.AsyncLogger, issuer *tokenissuer.Service) *Controller {
	return &Controller{
		DB:     db,
		Logger: asyncLogger,
		Issuer: issuer,
	}
}

// IssueToken returns the currently valid token for an action point,
// minting a fresh one at the rotation boundary. Display devices poll this
// endpoint; repeat calls inside one rotation period return the same value.
func (qc *Controller) IssueToken(c *fiber.Ctx) error {
	actionPointID, err := c.ParamsInt("action_point_id")
	if err != nil || actionPointID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid action point id",
			Data:    nil,
		})
	}

	token, err := qc.Issuer.Issue(uint(actionPointID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Status:  fiber.StatusNotFound,
				Message: "Action point not found",
				Data:    nil,
			})
		}
		logger.Error("Failed to issue QR token", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to issue token",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Token issued successfully",
		Data:    toResponse(token),
	})
}

// RegenerateToken retires the current static token of a mode_b action
// point and mints a replacement. Admin-only; used when a printed code may
// have leaked.
func (qc *Controller) RegenerateToken(c *fiber.Ctx) error {
	actionPointID, err := c.ParamsInt("action_point_id")
	if err != nil || actionPointID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid action point id",
			Data:    nil,
		})
	}

	token, err := qc.Issuer.Regenerate(uint(actionPointID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Status:  fiber.StatusNotFound,
				Message: "Action point not found",
				Data:    nil,
			})
		}
		if errors.Is(err, tokenissuer.ErrModeMismatch) {
			return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
				Status:  fiber.StatusBadRequest,
				Message: err.Error(),
				Data:    nil,
			})
		}
		logger.Error("Failed to regenerate QR token", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to regenerate token",
			Data:    nil,
		})
	}

	qc.Logger.Log(types.LogEntry{
		Method:       c.Method(),
		URL:          c.OriginalURL(),
		UserID:       middleware.UserIDFromCtx(c),
		ResponseBody: "token regenerated",
		StatusCode:   fiber.StatusOK,
		CreatedAt:    time.Now(),
	})

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Token regenerated successfully",
		Data:    toResponse(token),
	})
}

func toResponse(token *qrtoken.QRToken) qrTypes.TokenResponse {
	resp := qrTypes.TokenResponse{
		Value:    token.Value,
		Mode:     token.Mode.String(),
		IssuedAt: token.IssuedAt.Format(time.RFC3339),
	}
	if token.ExpiresAt != nil {
		resp.ExpiresAt = token.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}
