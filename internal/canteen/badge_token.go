package canteen

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidSecretHash         = errors.New("invalid badge secret hash format")
	ErrIncompatibleSecretVersion = errors.New("incompatible badge secret hash version")
	errSecretMismatch            = errors.New("badge secret mismatch")
)

type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// CreateSecretHash derives the stored hash for a badge secret. Only the
// hash is persisted; the secret lives on the physical badge.
func CreateSecretHash(secret string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	// Format is $argon2id$v=19$m=...,t=...,p=...$salt$hash
	format := "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	return fmt.Sprintf(format, argon2.Version, params.Memory, params.Iterations, params.Parallelism, b64Salt, b64Hash), nil
}

// VerifySecret checks a presented badge secret against the stored hash.
func VerifySecret(hashedSecret, secret string) error {
	parts := strings.Split(hashedSecret, "$")
	if len(parts) != 6 {
		return ErrInvalidSecretHash
	}

	if parts[1] != "argon2id" {
		return ErrInvalidSecretHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return err
	}
	if version != argon2.Version {
		return ErrIncompatibleSecretVersion
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return err
	}
	params.SaltLength = uint32(len(salt))

	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return err
	}
	params.KeyLength = uint32(len(decodedHash))

	comparisonHash := argon2.IDKey([]byte(secret), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	if subtle.ConstantTimeCompare(decodedHash, comparisonHash) == 1 {
		return nil
	}

	return errSecretMismatch
}

// BadgeClaims is the payload of a signed single-use badge token. The jti
// names the persisted token row so revocation and single-use state stay
// server side.
type BadgeClaims struct {
	jwt.RegisteredClaims
}

// SignBadgeToken mints an HS256 signed token for a badge credential.
func SignBadgeToken(signingSecret []byte, tokenID, personID string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := BadgeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   personID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingSecret)
}

// ParseBadgeToken verifies the signature and expiry of a signed badge token
// and returns its claims. All failures map to ErrTokenInvalid; the caller
// still resolves the jti against the store for revocation and single-use
// checks.
func ParseBadgeToken(signingSecret []byte, signed string, now func() time.Time) (BadgeClaims, error) {
	var claims BadgeClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(signed, &claims, func(*jwt.Token) (any, error) {
		return signingSecret, nil
	})
	if err != nil {
		return BadgeClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return BadgeClaims{}, ErrTokenInvalid
	}
	return claims, nil
}
