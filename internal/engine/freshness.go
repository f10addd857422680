package engine

// freshnessOK reports whether timestampMs is within [0, maxAgeMs] of
// nowMs. Future timestamps fail; clock-skew tolerance is not granted
// forward (spec.md §4.C).
func freshnessOK(nowMs, timestampMs, maxAgeMs int64) bool {
	age := nowMs - timestampMs
	return age >= 0 && age <= maxAgeMs
}
