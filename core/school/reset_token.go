package school

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	resetSalt = []byte("attendancepro.core.school.reset_token")

	ErrInvalidResetToken = errors.New("invalid password reset token")
	ErrResetTokenExpired = errors.New("password reset token expired")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// MakeResetToken generates a password reset token for a coordinator.
// The token is bound to the current password hash, so it stops working once used.
func MakeResetToken(key string, coord Teacher, hash []byte) (string, error) {
	return makeResetToken(key, coord, hash, daysSince2001(nowFunc()))
}

// VerifyResetToken checks token against the coordinator's current password hash.
func VerifyResetToken(key string, timeout time.Duration, coord Teacher, hash []byte, token string) error {
	parts := strings.SplitN(token, "-", 2)
	if token == "" || len(parts) < 2 {
		return ErrInvalidResetToken
	}

	data, err := b32.DecodeString(parts[0])
	if err != nil {
		return ErrInvalidResetToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return ErrInvalidResetToken
	}

	// check that the token has not been tampered with
	want, err := makeResetToken(key, coord, hash, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 0 {
		return ErrInvalidResetToken
	}

	if daysSince2001(nowFunc())-ts > int(timeout/(24*time.Hour)) {
		return ErrResetTokenExpired
	}
	return nil
}

func makeResetToken(key string, coord Teacher, hash []byte, ts int) (string, error) {
	var val bytes.Buffer
	val.WriteString(coord.ID)
	val.WriteString(coord.Email)
	val.Write(hash)
	val.WriteString(strconv.Itoa(ts))

	sum := sha256.Sum256(append(append([]byte{}, resetSalt...), key...))
	mac := hmac.New(sha256.New, sum[:])
	if _, err := mac.Write(val.Bytes()); err != nil {
		return "", errors.Wrap(err, "signing reset token")
	}
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("%s-%s", b32.EncodeToString([]byte(strconv.Itoa(ts))), sig), nil
}

func daysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}
