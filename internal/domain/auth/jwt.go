// Package auth issues and validates back-office access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sellerdesk/internal/config"
	appctx "sellerdesk/internal/core/context"
	"sellerdesk/internal/core/id"
)

// Permissions checked by the API.
const (
	PermListingsRead  = "listings:read"
	PermListingsWrite = "listings:write"
	PermBulkExecute   = "bulk:execute"
	PermBulkExport    = "bulk:export"
)

// Claims are the access token claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"uid"`
	SellerID    string   `json:"sid"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	IsAdmin     bool     `json:"adm,omitempty"`
}

// Identity is who a token is issued for.
type Identity struct {
	UserID      string
	SellerID    string
	Email       string
	Roles       []string
	Permissions []string
	IsAdmin     bool
}

// JWTService signs and checks HS256 tokens.
type JWTService struct {
	cfg config.JWTConfig
	now func() time.Time
}

// NewJWTService creates a token service.
func NewJWTService(cfg config.JWTConfig) *JWTService {
	if cfg.Issuer == "" {
		cfg.Issuer = "sellerdesk"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	return &JWTService{cfg: cfg, now: time.Now}
}

// Issue returns a signed token for who and its expiry.
func (s *JWTService) Issue(who Identity) (string, time.Time, error) {
	if who.UserID == "" || who.SellerID == "" {
		return "", time.Time{}, errors.New("user and seller are required")
	}
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New().String(),
			Issuer:    s.cfg.Issuer,
			Subject:   who.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:      who.UserID,
		SellerID:    who.SellerID,
		Email:       who.Email,
		Roles:       who.Roles,
		Permissions: who.Permissions,
		IsAdmin:     who.IsAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses a token and returns the user it belongs to.
func (s *JWTService) ValidateToken(token string) (*appctx.UserContext, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid || claims.UserID == "" || claims.SellerID == "" {
		return nil, errors.New("invalid token claims")
	}

	return &appctx.UserContext{
		UserID:      claims.UserID,
		SellerID:    claims.SellerID,
		Email:       claims.Email,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		IsAdmin:     claims.IsAdmin,
		SessionID:   claims.ID,
	}, nil
}
