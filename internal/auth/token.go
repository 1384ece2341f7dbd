package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the caller decoded from a verified token. It is passed explicitly
// through the call chain rather than stored on shared state.
type Identity struct {
	UserID   string
	Email    string
	Roles    []string
	TenantID string
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type bearerClaims struct {
	UserID    string   `json:"userId"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstname"`
	LastName  string   `json:"lastname"`
	Roles     []string `json:"roles"`
	TenantID  string   `json:"organisationId"`
	jwt.StandardClaims
}

// ReferralClaims is the payload of tokens handed out to referrers.
type ReferralClaims struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	jwt.StandardClaims
}

// TokenVerifier checks RS256 bearer tokens from the identity service and HS256
// referral tokens.
type TokenVerifier struct {
	publicKey      *rsa.PublicKey
	issuer         string
	referralSecret []byte
}

func NewTokenVerifier(publicKeyPEM, issuer, referralSecret string) (*TokenVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}
	if referralSecret == "" {
		return nil, errors.New("referral secret is required")
	}
	return &TokenVerifier{
		publicKey:      key,
		issuer:         issuer,
		referralSecret: []byte(referralSecret),
	}, nil
}

func (v *TokenVerifier) VerifyBearer(raw string) (Identity, error) {
	var claims bearerClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok || t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return Identity{}, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: missing userId", ErrInvalidToken)
	}

	return Identity{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Roles:    claims.Roles,
		TenantID: claims.TenantID,
	}, nil
}

func (v *TokenVerifier) VerifyReferral(raw string) (Identity, error) {
	var claims ReferralClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.referralSecret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return Identity{}, fmt.Errorf("%w: missing _id", ErrInvalidToken)
	}
	return Identity{UserID: claims.ID, Email: claims.Email}, nil
}

func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
