package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken is the opaque long-lived token handed to the client. Only
// HashToken(pepper, Raw) is persisted.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// Claims is the payload of an access token. Permissions is a snapshot of
// the role's active permissions when the token was issued; it is not
// re-read per request.
type Claims struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned for any token that fails parsing, signature
// or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// ParseRSAKeys decodes the PEM encoded signing and verification keys.
// Either may be nil when the process only signs or only verifies.
func ParseRSAKeys(privPEM, pubPEM []byte) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	var (
		priv *rsa.PrivateKey
		pub  *rsa.PublicKey
		err  error
	)
	if len(privPEM) > 0 {
		if priv, err = jwt.ParseRSAPrivateKeyFromPEM(privPEM); err != nil {
			return nil, nil, fmt.Errorf("parse private key: %w", err)
		}
	}
	if len(pubPEM) > 0 {
		if pub, err = jwt.ParseRSAPublicKeyFromPEM(pubPEM); err != nil {
			return nil, nil, fmt.Errorf("parse public key: %w", err)
		}
	} else if priv != nil {
		pub = &priv.PublicKey
	}
	return priv, pub, nil
}

// NewAccessToken builds and signs an RS256 JWT carrying
// {sub, username, role, permissions}.
func NewAccessToken(key *rsa.PrivateKey, userID, username, role string, perms []string, ttl time.Duration, now time.Time) (AccessToken, error) {
	now = now.UTC()
	exp := now.Add(ttl)
	if perms == nil {
		perms = []string{}
	}
	claims := Claims{
		Username:    username,
		Role:        role,
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies signature, algorithm and expiry and returns the
// claims.
func ParseAccessToken(key *rsa.PublicKey, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewRefreshToken returns a random token of n bytes (hex encoded) that
// expires ttlDays after now.
func NewRefreshToken(n, ttlDays int, now time.Time) (RefreshToken, error) {
	raw, err := RandomHex(n)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: now.UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashToken returns the hex HMAC-SHA256 of raw keyed by pepper, or a plain
// SHA-256 when no pepper is configured.
func HashToken(pepper, raw string) string {
	if pepper == "" {
		sum := sha256.Sum256([]byte(raw))
		return hex.EncodeToString(sum[:])
	}
	m := hmac.New(sha256.New, []byte(pepper))
	m.Write([]byte(raw))
	return hex.EncodeToString(m.Sum(nil))
}

// RandomHex returns n bytes of crypto/rand data, hex encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
