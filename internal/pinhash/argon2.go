package pinhash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

var (
	ErrEmptyPin      = errors.New("pin is empty")
	ErrInvalidFormat = errors.New("invalid pin hash")
)

// Params are the Argon2id cost parameters used for new hashes.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns parameters suited to an interactive unlock.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Params) validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return errors.New("pinhash memory must be >= 8192 KB")
	case p.Time < minTimeCost:
		return errors.New("pinhash time must be >= 1")
	case p.Parallelism < minParallelism:
		return errors.New("pinhash parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return errors.New("pinhash salt length must be >= 16")
	case p.KeyLength < minKeyLength:
		return errors.New("pinhash key length must be >= 16")
	}
	return nil
}

// Hash returns the PHC encoding of pin under p.
func Hash(pin string, p Params) (string, error) {
	if pin == "" {
		return "", ErrEmptyPin
	}
	if err := p.validate(); err != nil {
		return "", err
	}

	salt := make([]byte, p.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(pin), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether pin matches encoded. A malformed hash is an error,
// a mismatch is not.
func Verify(pin, encoded string) (bool, error) {
	h, err := parse(encoded)
	if err != nil {
		return false, err
	}
	sum := argon2.IDKey([]byte(pin), h.salt, h.params.Time, h.params.Memory, h.params.Parallelism, uint32(len(h.sum)))
	return subtle.ConstantTimeCompare(sum, h.sum) == 1, nil
}

// Check validates the format of encoded without verifying anything.
func Check(encoded string) error {
	_, err := parse(encoded)
	return err
}

type parsed struct {
	params Params
	salt   []byte
	sum    []byte
}

func parse(encoded string) (*parsed, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrInvalidFormat
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidFormat, parts[2])
	}

	var out parsed
	if err := parseParams(parts[3], &out.params); err != nil {
		return nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", ErrInvalidFormat)
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) < int(minKeyLength) {
		return nil, fmt.Errorf("%w: hash", ErrInvalidFormat)
	}
	out.salt, out.sum = salt, sum
	return &out, nil
}

func parseParams(part string, p *Params) error {
	seen := 0
	for _, pair := range strings.Split(part, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: parameter %q", ErrInvalidFormat, pair)
		}
		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return fmt.Errorf("%w: memory", ErrInvalidFormat)
			}
			p.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minTimeCost {
				return fmt.Errorf("%w: time", ErrInvalidFormat)
			}
			p.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return fmt.Errorf("%w: parallelism", ErrInvalidFormat)
			}
			p.Parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: parameter %q", ErrInvalidFormat, key)
		}
		seen++
	}
	if seen != 3 {
		return fmt.Errorf("%w: expected m, t and p", ErrInvalidFormat)
	}
	return nil
}
