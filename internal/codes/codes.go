package codes

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"strings"
)

// RecoveryAlphabet is the 62-symbol alphabet recovery codes are drawn from.
const RecoveryAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	smsCodeMin = 100000
	smsCodeMax = 999999
)

// RandomIndex returns a uniform integer in [0, n).
type RandomIndex func(n int) (int, error)

// Generator produces codes from a RandomIndex source.
type Generator struct {
	random RandomIndex
}

// NewGenerator returns a Generator. A nil source uses crypto/rand.
func NewGenerator(random RandomIndex) *Generator {
	if random == nil {
		random = CryptoRandomIndex
	}
	return &Generator{random: random}
}

// SMSCode returns a uniformly random six-digit code in [100000, 999999].
func (g *Generator) SMSCode() (string, error) {
	n, err := g.random(smsCodeMax - smsCodeMin + 1)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(smsCodeMin + n), nil
}

// RecoveryCodes returns count distinct codes of length symbols each.
func (g *Generator) RecoveryCodes(count, length int) ([]string, error) {
	if count <= 0 || length <= 0 {
		return nil, errors.New("invalid recovery code shape")
	}

	seen := make(map[string]struct{}, count)
	out := make([]string, 0, count)
	for attempts := 0; len(out) < count; attempts++ {
		if attempts > count*4 {
			return nil, errors.New("recovery code generation exhausted")
		}
		code, err := g.recoveryCode(length)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}

func (g *Generator) recoveryCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := g.random(len(RecoveryAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(RecoveryAlphabet[n])
	}
	return b.String(), nil
}

// HashRecoveryCode binds code to username so stored hashes cannot be
// replayed across accounts.
func HashRecoveryCode(username, code string) string {
	data := make([]byte, 0, len(username)+1+len(code))
	data = append(data, username...)
	data = append(data, 0)
	data = append(data, strings.TrimSpace(code)...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashRecoveryCodes hashes every code in order.
func HashRecoveryCodes(username string, codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = HashRecoveryCode(username, c)
	}
	return out
}

// MatchRecoveryCode returns the index of candidate in hashes or -1.
// Every entry is compared so the scan length does not depend on the match position.
func MatchRecoveryCode(username, candidate string, hashes []string) int {
	want := []byte(HashRecoveryCode(username, candidate))
	idx := -1
	for i, h := range hashes {
		if subtle.ConstantTimeCompare(want, []byte(h)) == 1 && idx < 0 {
			idx = i
		}
	}
	return idx
}

// MatchSMSCode compares a candidate against the pending code in constant time.
func MatchSMSCode(pending, candidate string) bool {
	if pending == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pending), []byte(strings.TrimSpace(candidate))) == 1
}

// CryptoRandomIndex is the crypto/rand backed RandomIndex.
func CryptoRandomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
