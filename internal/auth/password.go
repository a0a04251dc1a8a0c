package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params are the Argon2id cost parameters.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultArgon2Params follow the OWASP recommendation for Argon2id.
var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  32,
}

// minSaltLen is the shortest salt Argon2 accepts.
const minSaltLen = 8

// maxArgon2Params bounds the cost of hashing and of verifying a stored
// digest, so a corrupted m= or t= cannot exhaust memory or CPU.
var maxArgon2Params = Argon2Params{
	Time:    4 * DefaultArgon2Params.Time,
	Memory:  4 * DefaultArgon2Params.Memory,
	Threads: 4 * DefaultArgon2Params.Threads,
	KeyLen:  4 * DefaultArgon2Params.KeyLen,
}

// exceeds reports whether any cost parameter in p is above limit.
func (p Argon2Params) exceeds(limit Argon2Params) bool {
	return p.Time > limit.Time || p.Memory > limit.Memory ||
		p.Threads > limit.Threads || p.KeyLen > limit.KeyLen
}

// Hasher hashes passwords with Argon2id and a fixed, process-wide salt.
//
// The salt is part of the PHC output, so Verify reads it back from the digest
// and accepts hashes created with other parameters.
type Hasher struct {
	salt   []byte
	params Argon2Params
}

// NewHasher creates a Hasher with the default cost parameters.
func NewHasher(salt []byte) (*Hasher, error) {
	return NewHasherWithParams(salt, DefaultArgon2Params)
}

// NewHasherWithParams creates a Hasher with explicit cost parameters.
func NewHasherWithParams(salt []byte, params Argon2Params) (*Hasher, error) {
	if len(salt) < minSaltLen {
		return nil, fmt.Errorf("password salt must be at least %d bytes", minSaltLen)
	}
	if params.Time == 0 || params.Memory == 0 || params.Threads == 0 || params.KeyLen == 0 {
		return nil, fmt.Errorf("argon2 parameters must be non-zero")
	}
	if params.exceeds(maxArgon2Params) {
		return nil, fmt.Errorf("argon2 parameters exceed %+v", maxArgon2Params)
	}
	s := make([]byte, len(salt))
	copy(s, salt)
	return &Hasher{salt: s, params: params}, nil
}

// Hash returns the PHC string for password:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func (h *Hasher) Hash(password string) string {
	p := h.params
	hash := argon2.IDKey([]byte(password), h.salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

// Verify checks password against a PHC digest.
// A mismatch returns (false, nil); a malformed digest returns an error wrapping ErrHash.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	salt, hash, params, err := decodePHC(encoded)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrHash, err)
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

// decodePHC parses an Argon2id PHC string into its components.
func decodePHC(encoded string) (salt, hash []byte, params Argon2Params, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}

	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", err)
	}
	if params.Memory == 0 || params.Time == 0 || params.Threads == 0 {
		return nil, nil, params, fmt.Errorf("zero cost parameter")
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}
	if len(hash) == 0 {
		return nil, nil, params, fmt.Errorf("empty hash")
	}

	params.KeyLen = uint32(len(hash)) //nolint:gosec // G115: bounded by maxArgon2Params below
	if len(hash) > int(maxArgon2Params.KeyLen) || params.exceeds(maxArgon2Params) {
		return nil, nil, params, fmt.Errorf("cost parameters m=%d,t=%d,p=%d,len=%d above limit",
			params.Memory, params.Time, params.Threads, len(hash))
	}

	return salt, hash, params, nil
}
