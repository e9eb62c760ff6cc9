package routes

import (
	"os"
	"strconv"
	"time"

	"campus-access/constants"
	actionPointController "campus-access/controllers/actionpoint"
	deviceController "campus-access/controllers/device"
	qrTokenController "campus-access/controllers/qrtoken"
	reportsController "campus-access/controllers/reports"
	scanController "campus-access/controllers/scan"
	"campus-access/logger"
	"campus-access/middleware"
	"campus-access/services/anomaly"
	"campus-access/services/devicetrust"
	"campus-access/services/ledger"
	"campus-access/services/registry"
	"campus-access/services/scanvalidator"
	"campus-access/services/tokenissuer"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupRoutes wires the services, controllers and route groups onto the app
func SetupRoutes(app *fiber.App, db *gorm.DB) {
	asyncLogger := logger.NewAsyncLogger(db)
	go asyncLogger.ProcessLog()

	registryService := registry.NewRegistryService(db)
	ledgerService := ledger.NewLedgerService(db)
	deviceService := devicetrust.NewDeviceTrustService(db)
	issuerService := tokenissuer.NewTokenIssuer(db, registryService)
	validatorService := scanvalidator.NewScanValidator(registryService, deviceService, ledgerService, issuerService)

	detector := anomaly.NewAnomalyDetector(db, ledgerService, deviceService, anomaly.DefaultConfig())
	go detector.Start(anomalyInterval())

	scanCtrl := scanController.NewScanController(db, asyncLogger, validatorService)
	qrCtrl := qrTokenController.NewQRTokenController(db, asyncLogger, issuerService)
	apCtrl := actionPointController.NewActionPointController(db, asyncLogger, registryService)
	deviceCtrl := deviceController.NewDeviceController(db, asyncLogger, deviceService)
	reportsCtrl := reportsController.NewReportsController(db, asyncLogger, ledgerService, detector)

	api := app.Group("/api")

	// Scan validation, called by the holder's mobile app
	scanGroup := api.Group("/scan")
	scanGroup.Post("/validate",
		middleware.RequirePermissions(constants.PermDeviceHolder, constants.PermSuperAdminFull),
		scanCtrl.ValidateScan)

	// QR issuance for display devices and the admin print view
	qrGroup := api.Group("/qr")
	qrGroup.Get("/issue/:action_point_id",
		middleware.RequireAnyPermission(constants.ActionPointAdminPermissions...),
		qrCtrl.IssueToken)
	qrGroup.Post("/regenerate/:action_point_id",
		middleware.RequirePermissions(constants.ActionPointAdminPermissions...),
		qrCtrl.RegenerateToken)

	// Action point administration
	apGroup := api.Group("/action-points",
		middleware.RequirePermissions(constants.ActionPointAdminPermissions...))
	apGroup.Post("/", apCtrl.StoreActionPoint)
	apGroup.Get("/", apCtrl.ListActionPoints)
	apGroup.Get("/:id", apCtrl.GetActionPoint)
	apGroup.Patch("/:id", apCtrl.UpdateActionPoint)
	apGroup.Delete("/:id", apCtrl.DeactivateActionPoint)

	// Device trust lifecycle
	deviceGroup := api.Group("/device")
	deviceGroup.Post("/register",
		middleware.RequirePermissions(constants.PermAny),
		deviceCtrl.RegisterDevice)
	deviceGroup.Post("/verify",
		middleware.RequirePermissions(constants.PermAny),
		deviceCtrl.VerifyDevice)
	deviceGroup.Post("/reset",
		middleware.RequirePermissions(constants.DeviceAdminPermissions...),
		deviceCtrl.ResetDevice)
	deviceGroup.Get("/active/:user_id",
		middleware.RequirePermissions(constants.DeviceAdminPermissions...),
		deviceCtrl.GetActiveDevice)

	// Ledger and anomaly dashboards
	logsGroup := api.Group("/scan-logs",
		middleware.RequirePermissions(constants.PermSuperAdminFull, constants.PermSecurityFull, constants.PermWardenFull))
	logsGroup.Get("/", reportsCtrl.ListScanLogs)
	logsGroup.Get("/summary", reportsCtrl.ScanSummary)
	logsGroup.Get("/anomalies", reportsCtrl.Anomalies)
}

// anomalyInterval reads the detector period from the environment, defaulting
// to 15 minutes.
func anomalyInterval() time.Duration {
	minutes, err := strconv.Atoi(os.Getenv("ANOMALY_INTERVAL_MINUTES"))
	if err != nil || minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}
