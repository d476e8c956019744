package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/tour-booking/internal/apperr"
)

// ResetTokenTTL is how long a password-reset token stays valid.
const ResetTokenTTL = 10 * time.Minute

// Claims is the verified content of a session token.
type Claims struct {
	Subject  string // user id the token was issued for
	IssuedAt int64  // issuance time, unix seconds
}

// TokenService issues and verifies HS256 session tokens. Validity is fully
// determined by signature and expiry; nothing is stored server-side.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime (the session cookie reuses it).
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for the given subject with standard sub/iat/exp claims.
func (s *TokenService) Issue(subjectID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subjectID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Verify parses and validates a token. It fails with TokenExpired once the
// TTL has elapsed and TokenInvalid for anything malformed or forged.
func (s *TokenService) Verify(raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperr.TokenExpired("Your token has expired, please login again")
		}
		return Claims{}, apperr.TokenInvalid("Invalid token. Please login again")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Claims{}, apperr.TokenInvalid("Invalid token. Please login again")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Claims{}, apperr.TokenInvalid("Invalid token. Please login again")
	}
	iat, _ := claims["iat"].(float64)
	return Claims{Subject: sub, IssuedAt: int64(iat)}, nil
}

// ResetToken is a freshly generated password-reset credential. Raw goes to
// the user out of band; only Hash and Exp are persisted.
type ResetToken struct {
	Raw  string
	Hash string
	Exp  time.Time
}

// NewResetToken returns 32 bytes of secure randomness hex-encoded, its
// SHA-256 digest, and an absolute expiry ten minutes out.
func NewResetToken() (ResetToken, error) {
	raw, err := randomHex(32)
	if err != nil {
		return ResetToken{}, err
	}
	return ResetToken{
		Raw:  raw,
		Hash: HashResetRaw(raw),
		Exp:  time.Now().UTC().Add(ResetTokenTTL),
	}, nil
}

// HashResetRaw returns the SHA-256 hash of a raw reset token as a hex
// string. Only the hash ever reaches the database.
func HashResetRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
