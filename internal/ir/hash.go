package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// encoding to change without colliding with old hashes.
const (
	DomainScene = "xpbd/scene/v1"
	DomainState = "xpbd/state/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SceneHash identifies a compiled scene. Two scenes whose numbers agree to
// within Quantum hash equally.
func SceneHash(s *Scene) (string, error) {
	v, err := ToIR(s)
	if err != nil {
		return "", fmt.Errorf("scene hash: %w", err)
	}
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("scene hash: %w", err)
	}
	return hashWithDomain(DomainScene, data), nil
}

// StateHash identifies the particle state of one step: the step index and
// the quantized positions, in order. A non-finite position is an error.
func StateHash(step int64, positions []Vec3) (string, error) {
	arr := make(IRArray, len(positions))
	for i, p := range positions {
		q, err := QuantizeVec(p)
		if err != nil {
			return "", fmt.Errorf("state hash: particle %d: %w", i, err)
		}
		arr[i] = q
	}
	data, err := MarshalCanonical(IRObject{
		"step":      IRInt(step),
		"positions": arr,
	})
	if err != nil {
		return "", fmt.Errorf("state hash: %w", err)
	}
	return hashWithDomain(DomainState, data), nil
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when inputs are known to be finite.
func MustStateHash(step int64, positions []Vec3) string {
	h, err := StateHash(step, positions)
	if err != nil {
		panic(err)
	}
	return h
}
