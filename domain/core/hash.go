package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex characters, for log lines and report headers
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	InputHash   Hash
	ConfigHash  Hash
	Fingerprint Hash
)

func (h InputHash) String() string   { return Hash(h).String() }
func (h ConfigHash) String() string  { return Hash(h).String() }
func (h Fingerprint) String() string { return Hash(h).String() }

// ComputeInputHash hashes named input contents in sorted name order.
func ComputeInputHash(files map[string][]byte) InputHash {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(files[name])
		h.Write([]byte{0})
	}
	return InputHash(hex.EncodeToString(h.Sum(nil)))
}

// ComputeConfigHash hashes a flat parameter map in key order.
func ComputeConfigHash(params map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%v", params[key]))
		data.WriteString(";")
	}
	return ConfigHash(NewHash([]byte(data.String())))
}

// ComputeFingerprint combines input and config hashes into one invocation fingerprint.
func ComputeFingerprint(inputs InputHash, cfg ConfigHash) Fingerprint {
	return Fingerprint(NewHash([]byte(inputs.String() + ":" + cfg.String())))
}
