package store

// CompareRuns lists the recordings and subscription logs whose fingerprints
// differ between prev and cur, in cur's order followed by entries only prev
// has. An empty result means cur reproduced prev exactly.
func CompareRuns(prev, cur Run) []FingerprintChange {
	changes := []FingerprintChange{}

	prevRecs := make(map[string]string, len(prev.Recordings))
	for _, r := range prev.Recordings {
		prevRecs[r.Name] = r.Fingerprint
	}
	for _, r := range cur.Recordings {
		if old, ok := prevRecs[r.Name]; !ok || old != r.Fingerprint {
			changes = append(changes, FingerprintChange{
				Kind:     ChangeRecording,
				Name:     r.Name,
				Previous: old,
				Current:  r.Fingerprint,
			})
		}
		delete(prevRecs, r.Name)
	}
	for _, r := range prev.Recordings {
		if _, ok := prevRecs[r.Name]; ok {
			changes = append(changes, FingerprintChange{Kind: ChangeRecording, Name: r.Name, Previous: r.Fingerprint})
		}
	}

	prevLogs := make(map[string]string, len(prev.Subscriptions))
	for _, l := range prev.Subscriptions {
		prevLogs[l.Source] = l.Fingerprint
	}
	for _, l := range cur.Subscriptions {
		if old, ok := prevLogs[l.Source]; !ok || old != l.Fingerprint {
			changes = append(changes, FingerprintChange{
				Kind:     ChangeSubscriptions,
				Name:     l.Source,
				Previous: old,
				Current:  l.Fingerprint,
			})
		}
		delete(prevLogs, l.Source)
	}
	for _, l := range prev.Subscriptions {
		if _, ok := prevLogs[l.Source]; ok {
			changes = append(changes, FingerprintChange{Kind: ChangeSubscriptions, Name: l.Source, Previous: l.Fingerprint})
		}
	}

	return changes
}
