package timetable

import "math"

// EligibleSubjects drops subjects without any eligible teacher. Such subjects
// never receive a quota nor a fallback placement.
func EligibleSubjects(subjects []Subject) []Subject {
	eligible := make([]Subject, 0, len(subjects))
	for _, subject := range subjects {
		if subject.Schedulable() {
			eligible = append(eligible, subject)
		}
	}
	return eligible
}

// AllocateQuotas distributes availableSlotCount across eligible subjects in
// proportion to their priority weight, rounding down. The sum of targets never
// exceeds availableSlotCount; the engine's fallback pass absorbs the remainder.
// Weights that are not positive finite numbers count as zero.
func AllocateQuotas(subjects []Subject, availableSlotCount int) map[string]int {
	eligible := EligibleSubjects(subjects)
	quotas := make(map[string]int, len(eligible))
	if len(eligible) == 0 {
		return quotas
	}

	weights := make([]float64, len(eligible))
	var totalWeight, maxWeight float64
	for i, subject := range eligible {
		if ValidWeight(subject.PriorityWeight) {
			weights[i] = subject.PriorityWeight
			totalWeight += weights[i]
			maxWeight = math.Max(maxWeight, weights[i])
		}
	}
	if math.IsInf(totalWeight, 1) {
		// rescale so the sum fits; shares are unchanged
		totalWeight = 0
		for i := range weights {
			weights[i] /= maxWeight
			totalWeight += weights[i]
		}
	}

	n := float64(availableSlotCount)
	for i, subject := range eligible {
		w := weights[i]
		if totalWeight <= 0 || w <= 0 || availableSlotCount <= 0 {
			quotas[subject.ID] = 0
			continue
		}
		// multiply first so integral weights divide exactly
		share := w * n / totalWeight
		if math.IsInf(w*n, 0) {
			share = w / totalWeight * n
		}
		target := int(math.Floor(share))
		if target > availableSlotCount {
			target = availableSlotCount
		}
		quotas[subject.ID] = target
	}
	return quotas
}

// ValidWeight reports whether w can take part in quota arithmetic.
func ValidWeight(w float64) bool {
	return w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}
