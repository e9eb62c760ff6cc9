package tokenissuer

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"campus-access/models/actionpoint"
	"campus-access/models/qrtoken"
	"campus-access/services/registry"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidToken marks a token value whose signature or payload could
	// not be verified.
	ErrInvalidToken = errors.New("invalid token value")
	// ErrModeMismatch is returned when regenerate is called on a mode_a
	// action point.
	ErrModeMismatch = errors.New("regenerate applies to mode_b action points only")
)

// Claims is the decoded payload of a signed QR token value. Everything the
// validator needs for signature, attribution and freshness checks is inside
// the token itself, so no database round trip is required to reject a forgery.
type Claims struct {
	ActionPointID uint
	JTI           string
	Mode          actionpoint.QRMode
	IssuedAt      time.Time
	ExpiresAt     *time.Time
}

// Service mints, rotates and verifies QR token values
type Service struct {
	DB       *gorm.DB
	Registry *registry.Service

	// now is swapped out in tests
	now func() time.Time
}

// NewTokenIssuer creates a new token issuer service
func NewTokenIssuer(db *gorm.DB, reg *registry.Service) *Service {
	return &Service{
		DB:       db,
		Registry: reg,
		now:      time.Now,
	}
}

// GraceWindow returns the configured rotation grace period. Defaults to
// zero: the prior token dies exactly at the rotation boundary unless ops
// explicitly allows late scans from skewed clocks.
func GraceWindow() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("TOKEN_GRACE_SECONDS"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func signingKey() ([]byte, error) {
	key := os.Getenv("QR_SIGNING_KEY")
	if key == "" {
		return nil, fmt.Errorf("QR_SIGNING_KEY environment variable is not set")
	}
	return []byte(key), nil
}

// Issue returns the current token for the action point, minting one when
// none is active or (mode_a) the active one has expired. Concurrent calls
// inside one rotation period all observe the same token: the retire-and-mint
// transition runs under a row lock inside a transaction.
func (s *Service) Issue(actionPointID uint) (*qrtoken.QRToken, error) {
	ap, err := s.Registry.Get(actionPointID)
	if err != nil {
		return nil, err
	}

	var result *qrtoken.QRToken
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var current qrtoken.QRToken
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("action_point_id = ? AND is_active = ?", ap.ID, true).
			First(&current).Error

		now := s.now()

		if err == nil {
			// Idempotent within a rotation period: return the active token
			// unchanged while it is still fresh. Static tokens stay active
			// until explicitly regenerated.
			if ap.QRMode == actionpoint.ModeB || !current.IsExpired(now, 0) {
				result = &current
				return nil
			}

			// Rotation boundary: retire before minting.
			retiredAt := now
			current.IsActive = false
			current.RetiredAt = &retiredAt
			if err := tx.Save(&current).Error; err != nil {
				return fmt.Errorf("failed to retire token: %w", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		minted, err := mint(tx, ap, now)
		if err != nil {
			return err
		}
		result = minted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Regenerate explicitly retires the current static value of a mode_b action
// point and mints a new one. Used when a printed code may be compromised.
// The retired value can never validate again.
func (s *Service) Regenerate(actionPointID uint) (*qrtoken.QRToken, error) {
	ap, err := s.Registry.Get(actionPointID)
	if err != nil {
		return nil, err
	}
	if ap.QRMode != actionpoint.ModeB {
		return nil, ErrModeMismatch
	}

	var result *qrtoken.QRToken
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		now := s.now()

		var current qrtoken.QRToken
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("action_point_id = ? AND is_active = ?", ap.ID, true).
			First(&current).Error
		if err == nil {
			retiredAt := now
			current.IsActive = false
			current.RetiredAt = &retiredAt
			if err := tx.Save(&current).Error; err != nil {
				return fmt.Errorf("failed to retire token: %w", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		minted, err := mint(tx, ap, now)
		if err != nil {
			return err
		}
		result = minted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IsRetired reports whether the given jti belongs to a token that is no
// longer the active value for its action point. Mode_b validation pins
// scans to the currently active static token.
func (s *Service) IsRetired(jti string) (bool, error) {
	var token qrtoken.QRToken
	if err := s.DB.Where("jti = ?", jti).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Signed but unknown: the signing key validated it, yet we never
			// stored it. Treat as retired rather than trusting it.
			return true, nil
		}
		return false, err
	}
	return !token.IsActive, nil
}

// mint creates and persists a freshly signed token for the action point
func mint(tx *gorm.DB, ap *actionpoint.ActionPoint, now time.Time) (*qrtoken.QRToken, error) {
	jti := uuid.NewString()

	var expiresAt *time.Time
	claims := jwt.MapClaims{
		"ap":   ap.ID,
		"jti":  jti,
		"mode": ap.QRMode.String(),
		"iat":  now.Unix(),
	}
	if ap.QRMode == actionpoint.ModeA {
		exp := now.Add(time.Duration(ap.QRRotationMinutes) * time.Minute)
		expiresAt = &exp
		claims["exp"] = exp.Unix()
	}

	key, err := signingKey()
	if err != nil {
		return nil, err
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	token := qrtoken.QRToken{
		ActionPointID: ap.ID,
		Value:         value,
		JTI:           jti,
		Mode:          ap.QRMode,
		IssuedAt:      now,
		ExpiresAt:     expiresAt,
		IsActive:      true,
	}
	if err := tx.Create(&token).Error; err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return &token, nil
}

// Verify checks the signature of a presented token value and decodes its
// claims. Expiry is deliberately NOT validated here: freshness is a separate
// pipeline step with its own outcome and grace handling.
func Verify(value string) (*Claims, error) {
	key, err := signingKey()
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.Parse(value, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	apID, ok := mapClaims["ap"].(float64)
	if !ok || apID <= 0 {
		return nil, ErrInvalidToken
	}
	jti, ok := mapClaims["jti"].(string)
	if !ok || jti == "" {
		return nil, ErrInvalidToken
	}
	mode := actionpoint.QRMode(fmt.Sprint(mapClaims["mode"]))
	if !mode.IsValid() {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		ActionPointID: uint(apID),
		JTI:           jti,
		Mode:          mode,
	}
	if iat, ok := mapClaims["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := mapClaims["exp"].(float64); ok {
		t := time.Unix(int64(exp), 0)
		claims.ExpiresAt = &t
	}
	return claims, nil
}
