// Package httpapi exposes prospects, campaigns and scoring over a JSON API.
package httpapi

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/ensemble"
)

const defaultCrawlOrganizations = 3

// ProspectReader is the read side of the prospect store.
type ProspectReader interface {
	List(ctx context.Context, limit int) ([]domain.Prospect, error)
	Get(ctx context.Context, url string) (domain.Prospect, bool, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// CampaignRunner starts crawls.
type CampaignRunner interface {
	RunCampaign(ctx context.Context, description string, maxOrganizations int) ([]domain.Prospect, error)
	CrawlURLs(ctx context.Context, urls []string) ([]domain.Prospect, error)
}

// Scorer runs the ensemble.
type Scorer interface {
	Score(ctx context.Context, p domain.Prospect) (domain.ScoringResult, error)
	ScoreURL(ctx context.Context, url string) (domain.ScoredProspect, bool, error)
	BatchScore(ctx context.Context) ([]domain.ScoredProspect, error)
	Retrain(ctx context.Context) (*ensemble.Snapshot, error)
}

// ProspectView is the JSON shape of a stored prospect.
type ProspectView struct {
	ID                  int64     `json:"id"`
	URL                 string    `json:"url"`
	OrganizationName    string    `json:"organization_name"`
	Emails              []string  `json:"emails"`
	Phones              []string  `json:"phones"`
	Addresses           []string  `json:"addresses"`
	SustainabilityScore float64   `json:"sustainability_score"`
	DonationProbability float64   `json:"donation_probability"`
	EngagementScore     float64   `json:"engagement_score"`
	FinalScore          float64   `json:"final_score"`
	CreatedAt           time.Time `json:"created_at"`
}

func newProspectView(p domain.Prospect) ProspectView {
	return ProspectView{
		ID:                  p.ID,
		URL:                 p.URL,
		OrganizationName:    p.OrganizationName,
		Emails:              nonNil(p.Emails),
		Phones:              nonNil(p.Phones),
		Addresses:           nonNil(p.Addresses),
		SustainabilityScore: p.Scores.Sustainability,
		DonationProbability: p.Scores.DonationProbability,
		EngagementScore:     p.Scores.Engagement,
		FinalScore:          p.Scores.Final,
		CreatedAt:           p.CreatedAt,
	}
}

func newProspectViews(ps []domain.Prospect) []ProspectView {
	out := make([]ProspectView, len(ps))
	for i, p := range ps {
		out[i] = newProspectView(p)
	}
	return out
}

// CrawlRequest starts a discovery campaign, or crawls URLs directly when URLs is non-empty.
type CrawlRequest struct {
	CampaignDescription string   `json:"campaign_description"`
	MaxOrganizations    int      `json:"max_organizations"`
	URLs                []string `json:"urls"`
}

// ScoreProspectRequest scores a stored prospect by URL, or an ad-hoc one when ContentText is set.
type ScoreProspectRequest struct {
	URL              string   `json:"url"`
	OrganizationName string   `json:"organization_name"`
	Emails           []string `json:"emails"`
	Phones           []string `json:"phones"`
	ContentText      string   `json:"content_text"`
}

// Handler serves the donor API.
type Handler struct {
	prospects ProspectReader
	campaigns CampaignRunner
	scorer    Scorer
}

// NewHandler creates a handler over the given services.
func NewHandler(prospects ProspectReader, campaigns CampaignRunner, scorer Scorer) *Handler {
	return &Handler{prospects: prospects, campaigns: campaigns, scorer: scorer}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListProspects handles GET /api/donor/prospects.
func (h *Handler) ListProspects(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		fail(c, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	prospects, err := h.prospects.List(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prospects": newProspectViews(prospects)})
}

// LookupProspect handles GET /api/donor/prospects/lookup?url=.
func (h *Handler) LookupProspect(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		fail(c, http.StatusBadRequest, "url is required")
		return
	}

	p, found, err := h.prospects.Get(c.Request.Context(), url)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "Prospect not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prospect": newProspectView(p)})
}

// StartCrawl handles POST /api/donor/crawl.
func (h *Handler) StartCrawl(c *gin.Context) {
	var req CrawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxOrganizations <= 0 {
		req.MaxOrganizations = defaultCrawlOrganizations
	}

	var (
		results []domain.Prospect
		err     error
	)
	if len(req.URLs) > 0 {
		results, err = h.campaigns.CrawlURLs(c.Request.Context(), req.URLs)
	} else {
		results, err = h.campaigns.RunCampaign(c.Request.Context(), req.CampaignDescription, req.MaxOrganizations)
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Successfully crawled " + strconv.Itoa(len(results)) + " organizations",
		"results": newProspectViews(results),
	})
}

// ScoreProspects handles POST /api/donor/score.
func (h *Handler) ScoreProspects(c *gin.Context) {
	scored, err := h.scorer.BatchScore(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if scored == nil {
		scored = []domain.ScoredProspect{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "scored_prospects": scored})
}

// ScoreProspect handles POST /api/donor/score/prospect.
func (h *Handler) ScoreProspect(c *gin.Context) {
	var req ScoreProspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.ContentText) == "" {
		if req.URL == "" {
			fail(c, http.StatusBadRequest, "url or content_text is required")
			return
		}
		scored, found, err := h.scorer.ScoreURL(c.Request.Context(), req.URL)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !found {
			fail(c, http.StatusNotFound, "Prospect not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "scored_prospect": scored})
		return
	}

	result, err := h.scorer.Score(c.Request.Context(), domain.Prospect{
		URL:              req.URL,
		OrganizationName: req.OrganizationName,
		Emails:           req.Emails,
		Phones:           req.Phones,
		ContentText:      req.ContentText,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// RetrainModel handles POST /api/donor/model/retrain.
func (h *Handler) RetrainModel(c *gin.Context) {
	snap, err := h.scorer.Retrain(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"model_id":           snap.ID,
		"trained_at":         snap.TrainedAt,
		"rows":               snap.Rows,
		"feature_importance": snap.Importances,
	})
}

// DashboardStats handles GET /api/donor/dashboard/stats.
func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := h.prospects.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	stats.AverageScore = math.Round(stats.AverageScore*1000) / 1000
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
