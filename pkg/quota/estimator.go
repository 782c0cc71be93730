package quota

const (
	// charsPerToken is the rough character-to-token ratio for text
	charsPerToken = 4

	// imageCharCost is the approximate cost per inlined image, expressed in
	// characters so it flows through the same chars-to-tokens conversion
	imageCharCost = 1000

	// responseTokenBuffer is a conservative allowance for the reply
	responseTokenBuffer = 1000
)

// Estimator estimates the token cost of a prospective request before it is
// made. The heuristic is intentionally conservative; it bounds the risk of
// exceeding limits rather than matching the provider's exact tokenizer.
type Estimator struct{}

// Estimate returns the estimated token cost of a request composed of the
// given text parts and image count.
func (Estimator) Estimate(texts []string, imageCount int) int {
	totalChars := 0
	for _, t := range texts {
		totalChars += len(t)
	}
	totalChars += imageCount * imageCharCost

	return totalChars/charsPerToken + responseTokenBuffer
}
