package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/marbles/internal/ir"
)

// NewRecording serializes msgs to canonical JSON and fingerprints them.
func NewRecording(name, source string, msgs []ir.TimedMessage) (Recording, error) {
	data, err := ir.MarshalCanonical(msgs)
	if err != nil {
		return Recording{}, fmt.Errorf("marshal recording %q: %w", name, err)
	}
	fp, err := ir.Fingerprint(msgs)
	if err != nil {
		return Recording{}, fmt.Errorf("fingerprint recording %q: %w", name, err)
	}
	return Recording{
		Name:        name,
		Source:      source,
		Fingerprint: fp,
		Messages:    string(data),
	}, nil
}

// NewSubscriptionLog serializes windows to canonical JSON and fingerprints them.
func NewSubscriptionLog(source string, windows []ir.SubscriptionWindow) (SubscriptionLog, error) {
	data, err := ir.MarshalCanonical(windows)
	if err != nil {
		return SubscriptionLog{}, fmt.Errorf("marshal subscriptions %q: %w", source, err)
	}
	fp, err := ir.SubscriptionFingerprint(windows)
	if err != nil {
		return SubscriptionLog{}, fmt.Errorf("fingerprint subscriptions %q: %w", source, err)
	}
	return SubscriptionLog{
		Source:      source,
		Fingerprint: fp,
		Windows:     string(data),
	}, nil
}

// marshalErrors converts failure messages to canonical JSON TEXT for storage.
func marshalErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	data, err := ir.MarshalCanonical(errs)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(data), nil
}

// unmarshalErrors parses failure messages. Returns an empty slice, not nil.
func unmarshalErrors(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return []string{}, nil
	}
	var errs []string
	if err := json.Unmarshal([]byte(data), &errs); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	return errs, nil
}
