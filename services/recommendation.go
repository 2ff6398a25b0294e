package services

// Recommendation turns the primary confidence and the number of corroborating
// sources into operator guidance.
func Recommendation(primaryConfidence float64, corroborators int) string {
	switch {
	case primaryConfidence >= 0.8 && corroborators >= 2:
		return "High confidence, multiple sources confirm"
	case primaryConfidence >= 0.6 && corroborators >= 1:
		return "Good confidence, corroborated by additional source"
	case primaryConfidence >= 0.6:
		return "Moderate confidence, single source"
	case primaryConfidence >= 0.3:
		return "Fair confidence, verify item condition in person"
	default:
		return "Low confidence, limited data available"
	}
}
