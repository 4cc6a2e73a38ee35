package domain

// Recommendation bands an ensemble score for outreach prioritisation.
type Recommendation string

const (
	RecommendationHigh           Recommendation = "HIGH_PRIORITY"
	RecommendationMedium         Recommendation = "MEDIUM_PRIORITY"
	RecommendationLow            Recommendation = "LOW_PRIORITY"
	RecommendationNotRecommended Recommendation = "NOT_RECOMMENDED"
)

// Recommend maps an ensemble score and its confidence to a band.
func Recommend(score, confidence float64) Recommendation {
	switch {
	case score >= 0.8 && confidence >= 0.7:
		return RecommendationHigh
	case score >= 0.6 && confidence >= 0.5:
		return RecommendationMedium
	case score >= 0.4:
		return RecommendationLow
	default:
		return RecommendationNotRecommended
	}
}

// ScoringResult is the ensemble output exposed to the API and outreach collaborators.
type ScoringResult struct {
	EnsembleScore    float64            `json:"ensemble_score"`
	IndividualScores map[string]float64 `json:"individual_scores"`
	Confidence       float64            `json:"confidence"`
	Recommendation   Recommendation     `json:"recommendation"`
}

// ScoredProspect pairs a stored prospect with its ensemble result.
type ScoredProspect struct {
	ID               int64              `json:"id"`
	URL              string             `json:"url"`
	OrganizationName string             `json:"organization_name"`
	AIScore          float64            `json:"ai_score"`
	Confidence       float64            `json:"confidence"`
	Recommendation   Recommendation     `json:"recommendation"`
	IndividualScores map[string]float64 `json:"individual_scores"`
}

// LabeledProspect is a training row for the ensemble.
type LabeledProspect struct {
	Prospect Prospect
	Positive bool
}
