package pin

import (
	"bytes"
	"encoding/hex"
)

// DefaultTag prefixes every fingerprint written on-chain. Deployments that
// share a chain use distinct tags to tell their payloads apart.
const DefaultTag = "LEGALPIN:"

// MaxFingerprintSize is the largest fingerprint (a SHA-256 digest) accepted.
const MaxFingerprintSize = 32

// Framer prefixes fingerprints with a fixed tag. The tag is chosen when the
// engine is constructed and never changes afterwards.
type Framer struct {
	tag []byte
}

func NewFramer(tag string) Framer {
	if tag == "" {
		tag = DefaultTag
	}
	return Framer{tag: []byte(tag)}
}

func (f Framer) Tag() string {
	return string(f.tag)
}

// Frame returns tag || fingerprint.
func (f Framer) Frame(fingerprint []byte) ([]byte, error) {
	if err := ValidateFingerprint(fingerprint); err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(f.tag)+len(fingerprint))
	payload = append(payload, f.tag...)
	payload = append(payload, fingerprint...)
	return payload, nil
}

// FrameHex is Frame followed by hex encoding, the form a data output takes.
func (f Framer) FrameHex(fingerprint []byte) (string, error) {
	payload, err := f.Frame(fingerprint)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(payload), nil
}

// Unframe extracts the fingerprint from a payload carrying this tag.
func (f Framer) Unframe(payload []byte) ([]byte, bool) {
	if !bytes.HasPrefix(payload, f.tag) {
		return nil, false
	}
	fp := payload[len(f.tag):]
	if ValidateFingerprint(fp) != nil {
		return nil, false
	}
	return fp, true
}

// ValidateFingerprint fails with InvalidInput unless 1 <= len <= 32.
func ValidateFingerprint(fingerprint []byte) error {
	if len(fingerprint) == 0 {
		return NewErr(InvalidInput, "fingerprint is empty")
	}
	if len(fingerprint) > MaxFingerprintSize {
		return NewErr(InvalidInput, "fingerprint is %d bytes, at most %d allowed", len(fingerprint), MaxFingerprintSize)
	}
	return nil
}
