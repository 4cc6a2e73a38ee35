package domain

import (
	"math"
	"time"
)

// Weights of the heuristic scores inside the final prospect score.
const (
	SustainabilityWeight = 0.4
	DonationWeight       = 0.4
	EngagementWeight     = 0.2
)

// MaxContentLength bounds the aggregated page text kept on a prospect (in runes).
const MaxContentLength = 5000

// Prospect is a crawled organisation, keyed by the seed URL it was crawled from.
type Prospect struct {
	ID               int64
	URL              string
	OrganizationName string
	Emails           []string
	Phones           []string
	Addresses        []string
	ContentText      string
	Scores           HeuristicScores
	CreatedAt        time.Time
}

// HeuristicScores holds the rule-based scores computed at the end of a crawl.
type HeuristicScores struct {
	Sustainability      float64
	Engagement          float64
	DonationProbability float64
	Final               float64
}

// NewHeuristicScores derives the final score from the three heuristic signals.
func NewHeuristicScores(sustainability, engagement, donation float64) HeuristicScores {
	return HeuristicScores{
		Sustainability:      sustainability,
		Engagement:          engagement,
		DonationProbability: donation,
		Final:               FinalScore(sustainability, donation, engagement),
	}
}

// FinalScore is the fixed convex combination of the heuristic scores.
func FinalScore(sustainability, donation, engagement float64) float64 {
	return sustainability*SustainabilityWeight +
		donation*DonationWeight +
		engagement*EngagementWeight
}

// HasContactInfo reports whether the crawl found at least one email or phone.
func (p Prospect) HasContactInfo() bool {
	return len(p.Emails) > 0 || len(p.Phones) > 0
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Stats summarises the prospect table for dashboards.
type Stats struct {
	TotalProspects        int     `json:"total_prospects"`
	HighPriorityProspects int     `json:"high_priority_prospects"`
	AverageScore          float64 `json:"average_score"`
}

// HighPriorityThreshold is the final score above which a stored prospect counts as high priority.
const HighPriorityThreshold = 0.7
