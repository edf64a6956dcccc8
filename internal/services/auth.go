package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"

	"brightsteps-backend-go/internal/config"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Claims is the decoded identity carried by a token. Refresh tokens only
// carry the subject.
type Claims struct {
	UserID string
	Email  string
	Roles  []string
}

type staffClaims struct {
	Type  string   `json:"typ"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and checks the staff console's HS256 JWTs and hashes
// staff passwords with argon2id.
type TokenService struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewTokenService(cfg config.AuthConfig) TokenService {
	return TokenService{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}
}

func (t TokenService) sign(claims staffClaims, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims.Issuer = t.Issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	return signed, exp, err
}

func (t TokenService) CreateAccessToken(userID, email string, roles []string) (string, int64, error) {
	signed, exp, err := t.sign(staffClaims{
		Type:             tokenTypeAccess,
		Email:            email,
		Roles:            roles,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, t.AccessTTL)
	return signed, exp.Unix(), err
}

func (t TokenService) CreateRefreshToken(userID string) (string, error) {
	signed, _, err := t.sign(staffClaims{
		Type:             tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, t.RefreshTTL)
	return signed, err
}

func (t TokenService) IssuePair(userID, email string, roles []string) (TokenPair, error) {
	access, exp, err := t.CreateAccessToken(userID, email, roles)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.CreateRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (t TokenService) ParseAccessToken(tokenStr string) (Claims, error) {
	return t.parse(tokenStr, tokenTypeAccess)
}

func (t TokenService) ParseRefreshToken(tokenStr string) (Claims, error) {
	return t.parse(tokenStr, tokenTypeRefresh)
}

func (t TokenService) parse(tokenStr, wantType string) (Claims, error) {
	var claims staffClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return t.Secret, nil
	},
		jwt.WithIssuer(t.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.Type != wantType || claims.Subject == "" {
		return Claims{}, ErrUnauthorized("Authentication failed")
	}
	return Claims{UserID: claims.Subject, Email: claims.Email, Roles: claims.Roles}, nil
}

// argon2Params are encoded into every hash so older hashes keep verifying
// after the defaults change.
type argon2Params struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
}

var defaultArgon2 = argon2Params{Memory: 64 * 1024, Time: 3, Threads: 1, KeyLen: 32}

const argon2SaltLen = 16

func (t TokenService) HashPassword(raw string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	p := defaultArgon2
	key := argon2.IDKey([]byte(raw), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword only understands argon2id hashes; anything else fails.
func (t TokenService) VerifyPassword(raw, encoded string) bool {
	p, salt, want, ok := parseArgon2Hash(encoded)
	if !ok {
		return false
	}
	got := argon2.IDKey([]byte(raw), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func parseArgon2Hash(encoded string) (argon2Params, []byte, []byte, bool) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argon2Params{}, nil, nil, false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argon2Params{}, nil, nil, false
	}
	var p argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return argon2Params{}, nil, nil, false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, nil, nil, false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argon2Params{}, nil, nil, false
	}
	p.KeyLen = uint32(len(key))
	return p, salt, key, true
}
