package qrtoken

// TokenResponse represents an issued QR token returned to a display device
// or the admin print view
type TokenResponse struct {
	Value     string `json:"value"`
	Mode      string `json:"mode"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at,omitempty"`
}
