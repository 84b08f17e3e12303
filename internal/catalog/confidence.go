package catalog

// Confidence grades how much trust a derived value carries.
type Confidence string

const (
	ConfidenceUnknown Confidence = "unknown"
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
)

var confidenceRanks = map[Confidence]int{
	ConfidenceUnknown: 0,
	ConfidenceLow:     1,
	ConfidenceMedium:  2,
	ConfidenceHigh:    3,
}

// Rank orders confidences from unknown (0) to high (3). Unrecognized
// values rank alongside unknown.
func (c Confidence) Rank() int {
	return confidenceRanks[c]
}

// Valid reports whether c is one of the four recognized grades.
func (c Confidence) Valid() bool {
	_, ok := confidenceRanks[c]
	return ok
}

// WeakestConfidence returns the lowest-ranked confidence among values,
// or ConfidenceUnknown when values is empty.
func WeakestConfidence(values ...Confidence) Confidence {
	if len(values) == 0 {
		return ConfidenceUnknown
	}
	weakest := values[0]
	for _, v := range values[1:] {
		if v.Rank() < weakest.Rank() {
			weakest = v
		}
	}
	return weakest
}
