package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRecording     = "marbles/recording/v1"
	DomainSubscriptions = "marbles/subscriptions/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a content-addressed hash of a recorded sequence.
// Two runs of the same scenario must produce the same fingerprint; the store
// uses this to flag non-deterministic replays.
func Fingerprint(msgs []TimedMessage) (string, error) {
	canonical, err := MarshalCanonical(msgs)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecording, canonical), nil
}

// SubscriptionFingerprint computes a content-addressed hash of a subscription log.
func SubscriptionFingerprint(windows []SubscriptionWindow) (string, error) {
	canonical, err := MarshalCanonical(windows)
	if err != nil {
		return "", fmt.Errorf("SubscriptionFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSubscriptions, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(msgs []TimedMessage) string {
	fp, err := Fingerprint(msgs)
	if err != nil {
		panic(err)
	}
	return fp
}
