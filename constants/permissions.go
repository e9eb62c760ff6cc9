package constants

// Organization permissions
const (
	// Admin permissions
	PermSuperAdminFull = "campus-access.super-admin.full-permit"
	PermRegistrarFull  = "campus-access.registrar.full-permit"
	PermWardenFull     = "campus-access.warden.full-permit"
	PermSecurityFull   = "campus-access.security.full-permit"

	// Mobile app / device holder permissions
	PermDeviceHolder = "campus-access.device-holder.scan-permit"

	// Special permissions
	PermAny = "any"
)

// Permission groups for convenience
var (
	ActionPointAdminPermissions = []string{
		PermSuperAdminFull,
		PermRegistrarFull,
		PermSecurityFull,
	}

	DeviceAdminPermissions = []string{
		PermSuperAdminFull,
		PermRegistrarFull,
		PermWardenFull,
	}
)
