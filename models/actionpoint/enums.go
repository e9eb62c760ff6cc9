package actionpoint

// ActionType represents the real-world action a successful scan authorizes
type ActionType string

const (
	ActionMessEntry         ActionType = "mess_entry"
	ActionHostelCheckin     ActionType = "hostel_checkin"
	ActionLibraryVisit      ActionType = "library_visit"
	ActionLibraryCheckout   ActionType = "library_checkout"
	ActionLibraryReturn     ActionType = "library_return"
	ActionAttendanceMark    ActionType = "attendance_mark"
	ActionEquipmentCheckout ActionType = "equipment_checkout"
	ActionEventCheckin      ActionType = "event_checkin"
	ActionExamHallEntry     ActionType = "exam_hall_entry"
	ActionTransportBoarding ActionType = "transport_boarding"
	ActionClinicalPosting   ActionType = "clinical_posting"
	ActionFeePayment        ActionType = "fee_payment"
	ActionVisitorEntry      ActionType = "visitor_entry"
	ActionCertificateVerify ActionType = "certificate_verify"
)

// QRMode represents how an action point issues QR codes
type QRMode string

const (
	// ModeA tokens rotate on a configured interval and expire
	ModeA QRMode = "mode_a"
	// ModeB tokens are static printed codes, valid until regenerated
	ModeB QRMode = "mode_b"
)

// SecurityLevel controls which validation checks are mandatory for an action point
type SecurityLevel string

const (
	SecurityStandard SecurityLevel = "standard"
	SecurityElevated SecurityLevel = "elevated"
	SecurityStrict   SecurityLevel = "strict"
)

// Helper methods for ActionType
func (at ActionType) String() string {
	return string(at)
}

func (at ActionType) IsValid() bool {
	switch at {
	case ActionMessEntry, ActionHostelCheckin, ActionLibraryVisit, ActionLibraryCheckout,
		ActionLibraryReturn, ActionAttendanceMark, ActionEquipmentCheckout, ActionEventCheckin,
		ActionExamHallEntry, ActionTransportBoarding, ActionClinicalPosting, ActionFeePayment,
		ActionVisitorEntry, ActionCertificateVerify:
		return true
	default:
		return false
	}
}

// GetAllActionTypes returns all valid action types
func GetAllActionTypes() []ActionType {
	return []ActionType{
		ActionMessEntry,
		ActionHostelCheckin,
		ActionLibraryVisit,
		ActionLibraryCheckout,
		ActionLibraryReturn,
		ActionAttendanceMark,
		ActionEquipmentCheckout,
		ActionEventCheckin,
		ActionExamHallEntry,
		ActionTransportBoarding,
		ActionClinicalPosting,
		ActionFeePayment,
		ActionVisitorEntry,
		ActionCertificateVerify,
	}
}

func (m QRMode) String() string {
	return string(m)
}

func (m QRMode) IsValid() bool {
	return m == ModeA || m == ModeB
}

func (sl SecurityLevel) String() string {
	return string(sl)
}

func (sl SecurityLevel) IsValid() bool {
	switch sl {
	case SecurityStandard, SecurityElevated, SecurityStrict:
		return true
	default:
		return false
	}
}

// RequiresGeofence returns true if the security level makes a configured
// geofence mandatory rather than advisory
func (sl SecurityLevel) RequiresGeofence() bool {
	return sl == SecurityStrict
}

// RequiresAttestation returns true if the security level requires the
// client-supplied device attestation flag on every scan
func (sl SecurityLevel) RequiresAttestation() bool {
	return sl == SecurityStrict
}
