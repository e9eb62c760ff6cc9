package database

import (
	"campus-access/models/actionpoint"
	"campus-access/models/anomaly"
	"campus-access/models/device"
	log_model "campus-access/models/log"
	"campus-access/models/otp"
	"campus-access/models/qrtoken"
	"campus-access/models/scanlog"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the engine owns. Composite and
// unique indexes are declared on the models themselves; AutoMigrate creates
// them together with the columns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&actionpoint.ActionPoint{},
		&qrtoken.QRToken{},
		&device.Registration{},
		&device.StatusEvent{},
		&otp.OTP{},
		&scanlog.ScanLog{},
		&anomaly.Flag{},
		&log_model.Log{},
	)
}
