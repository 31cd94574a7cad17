package token

import (
	"crypto/rand"
	"math"
	"time"
)

const (
	// StdLen is the default token length. 48 characters over a 64-symbol
	// alphabet carry 288 bits of entropy, well above the 128-bit floor for
	// bearer credentials.
	StdLen = 48

	// StdTTL is the default token lifetime, fixed at issuance.
	StdTTL = 24 * time.Hour
)

// StdChars is the URL-safe alphabet tokens are drawn from.
var StdChars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_")

const (
	// maxBufLen is the maximum length of a temporary buffer for random bytes.
	maxBufLen = 2048

	// minRegenBufLen is the minimum length of temporary buffer for random bytes
	// to fill after the first rand.Read request didn't produce the full result.
	// If the initial buffer is smaller, this value is ignored.
	// Rationale: for performance, assume it's pointless to request fewer bytes from rand.Read.
	minRegenBufLen = 16

	// maxByteValue is the maximum value of a byte (2^8 - 1).
	maxByteValue = 255

	// byteRange is the total number of possible byte values (2^8).
	byteRange = 256
)

// Grant is an issued invitation token together with its expiry.
type Grant struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer issues invitation tokens with a configurable length and lifetime.
// The zero value is not usable; use NewIssuer.
type Issuer struct {
	length int
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. Non-positive length or ttl fall back to
// StdLen and StdTTL.
func NewIssuer(length int, ttl time.Duration) *Issuer {
	if length <= 0 {
		length = StdLen
	}

	if ttl <= 0 {
		ttl = StdTTL
	}

	return &Issuer{
		length: length,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue generates a fresh token with the issuer's lifetime.
func (i *Issuer) Issue() Grant {
	return Grant{
		Value:     NewLenChars(i.length, StdChars),
		ExpiresAt: i.now().Add(i.ttl),
	}
}

// TTL reports the issuer's configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// New returns a new random token string of the standard length.
func New() string {
	return NewLenChars(StdLen, StdChars)
}

// NewLen returns a new random token string of the provided length.
func NewLen(length int) string {
	return NewLenChars(length, StdChars)
}

// estimatedBufLen returns the estimated number of random bytes to request
// given that byte values greater than maxByte will be rejected.
func estimatedBufLen(need, maxByte int) int {
	return int(math.Ceil(float64(need) * (maxByteValue / float64(maxByte))))
}

// NewLenCharsBytes returns a new random byte slice of the provided length, consisting
// of the provided byte slice of allowed characters (maximum 256).
func NewLenCharsBytes(length int, chars []byte) []byte {
	if length == 0 {
		return nil
	}
	clen := len(chars)
	if clen < 2 || clen > byteRange {
		panic("token: wrong charset length for NewLenChars")
	}

	maxRb := maxByteValue - (byteRange % clen)
	bufLen := estimatedBufLen(length, maxRb)
	if bufLen < length {
		bufLen = length
	}

	if bufLen > maxBufLen {
		bufLen = maxBufLen
	}

	buf := make([]byte, bufLen) // storage for random bytes
	out := make([]byte, length) // storage for result

	var i int // index in out
	for {
		if _, err := rand.Read(buf[:bufLen]); err != nil {
			panic("token: error reading random bytes: " + err.Error())
		}

		for _, rb := range buf[:bufLen] {
			c := int(rb)
			if c > maxRb {
				// Skip this number to avoid modulo bias.
				continue
			}
			out[i] = chars[c%clen]
			i++
			if i == length {
				return out
			}
		}
		// Adjust new requested length, but no smaller than minRegenBufLen.
		bufLen = estimatedBufLen(length-i, maxRb)
		if bufLen < minRegenBufLen && minRegenBufLen < cap(buf) {
			bufLen = minRegenBufLen
		}
		if bufLen > maxBufLen {
			bufLen = maxBufLen
		}
	}
}

// NewLenChars returns a new random string of the provided length, consisting
// of the provided byte slice of allowed characters (maximum 256).
func NewLenChars(length int, chars []byte) string {
	return string(NewLenCharsBytes(length, chars))
}
