package controllers

import (
	"context"
	"math"
	"net/http"
	"time"

	"fixmycity-be/config"
	"fixmycity-be/models"
	"fixmycity-be/similarity"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// FindSimilar handles POST /find_similar: given a prospective new report it
// returns existing open issues in the same category and locality that likely
// describe the same problem. An empty similar_issues array means "no
// duplicate, proceed to create".
func FindSimilar(c *gin.Context) {
	var input struct {
		IssueTitle  string                    `json:"issueTitle" binding:"required,max=200"`
		Description []models.DescriptionEntry `json:"description" binding:"required,min=1"`
		Category    string                    `json:"category" binding:"required"`
		Address     string                    `json:"address" binding:"required"`
		State       string                    `json:"state"`
		City        string                    `json:"city"`
		Latitude    *float64                  `json:"lat,omitempty"`
		Longitude   *float64                  `json:"lng,omitempty"`
		// Set when re-running the search for an already-saved draft, so
		// an issue is never matched against itself.
		ExcludeIssueID string `json:"excludeIssueId,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.ValidCategory(input.Category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	loc := similarity.Locality{
		State:   input.State,
		City:    input.City,
		Pincode: similarity.ExtractPincode(input.Address),
	}
	if loc.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid pincode found in the address."})
		return
	}

	var exclude primitive.ObjectID
	if input.ExcludeIssueID != "" {
		id, err := primitive.ObjectIDFromHex(input.ExcludeIssueID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid excludeIssueId"})
			return
		}
		exclude = id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := similarity.LoadConfig()
	retriever := similarity.Retriever{
		Issues: config.GetCollection("issues"),
		Cache:  config.RedisClient,
		TTL:    cfg.CacheTTL,
	}

	pool, err := retriever.Candidates(ctx, input.Category, loc, exclude)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to retrieve candidate issues"})
		return
	}

	draft := models.Issue{Description: input.Description}
	query := similarity.Query{
		Title:       input.IssueTitle,
		Description: draft.FlattenedDescription(),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
	}

	scored, err := cfg.ScoreCandidates(ctx, query, pool)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Similarity search timed out"})
		return
	}

	results := make([]gin.H, 0, cfg.MaxResults)
	for _, cand := range cfg.SelectDuplicates(scored) {
		results = append(results, gin.H{
			"issueId":          cand.Issue.ID.Hex(),
			"title":            cand.Issue.Title,
			"description":      cand.Issue.Description,
			"category":         cand.Issue.Category,
			"address":          cand.Issue.Address,
			"upvotes":          cand.Issue.Upvotes,
			"media":            cand.Issue.Media,
			"similarity_score": round4(cand.Score),
			"dateOfComplaint":  cand.Issue.DateOfComplaint,
			"status":           cand.Issue.Status,
			"matched_on_title": cand.MatchedOnTitle,
			"matched_on_geo":   cand.MatchedOnGeo,
		})
	}

	c.JSON(http.StatusOK, gin.H{"similar_issues": results})
}
