package domain

// RatingConfidence is the fixed confidence attached to every crime-rate
// rating row. The upstream counts are complete for their jurisdictions but
// the keyword classification is heuristic, hence less than 1.
const RatingConfidence = 0.8

// SafetyRating maps an overall crime rate (incidents per 1000 population) to
// the 1-10 scale rendered by the map frontend:
//
//	rating = clamp(10 - rate/5, 1, 10)
//
// Zero crime scores 10; rates of 45 and above clamp at 1. The slope is -0.2
// per unit rate. The formula is relied on for numeric parity by downstream
// consumers; do not round intermediates.
func SafetyRating(rate float64) float64 {
	rating := 10 - rate/5
	if rating < 1 {
		return 1
	}
	if rating > 10 {
		return 10
	}
	return rating
}
