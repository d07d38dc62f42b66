package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/enum"
)

const (
	// DefaultTTL is the lifetime of a staff access token.
	DefaultTTL = 12 * time.Hour

	// Issuer is stamped on every token and required on validation.
	Issuer = "optik-api"
)

var (
	errMissingStaff = errors.New("token has no staff id")
	errUnknownRole  = errors.New("token has an unknown role")
)

// Claims identify a staff member and the shop their token is scoped to.
type Claims struct {
	StaffID string    `json:"staff_id"`
	ShopID  uuid.UUID `json:"shop_id"`
	Role    string    `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims are checked.
func (c Claims) Validate() error {
	if c.StaffID == "" {
		return errMissingStaff
	}
	switch c.Role {
	case enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleCashier, enum.UserRoleOptician:
		return nil
	}
	return errUnknownRole
}

// GenerateToken signs an HS256 token. A non-positive ttl uses DefaultTTL.
func GenerateToken(secret, staffID string, shopID uuid.UUID, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	claims := Claims{
		StaffID: staffID,
		ShopID:  shopID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   staffID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken parses tokenStr and returns its claims if the signature,
// issuer, expiry and staff fields all check out.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
