package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"fixmycity-be/config"
	"fixmycity-be/models"
	"fixmycity-be/similarity"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// statusForError maps the core's typed failures to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, similarity.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, similarity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, similarity.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// MergeIntoIssue handles POST /api/issue/:id/merge: instead of creating a
// new issue, the reporter's description and media are appended to an
// existing open issue.
func MergeIntoIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	reporterVal, exists := c.Get("reporter_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	reporterID, ok := reporterVal.(string)
	if !ok || reporterID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	reporterName := "Anonymous"
	if name, ok := c.Get("reporter_name"); ok {
		if s, ok := name.(string); ok && s != "" {
			reporterName = s
		}
	}

	var input struct {
		// Accepted for parity with the report payload; a merge keeps the
		// target issue's title.
		IssueTitle  string             `json:"issueTitle,omitempty"`
		Description string             `json:"description" binding:"required,max=1000"`
		Media       []models.MediaItem `json:"media"`
		Score       float64            `json:"similarity_score,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(input.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Description must not be empty"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	merger := similarity.Merger{
		Issues: config.GetCollection("issues"),
		Merges: config.GetCollection("merges"),
		Cache:  config.RedisClient,
	}

	merged, err := merger.MergeIntoIssue(ctx, issueID, similarity.MergeInput{
		Description:  input.Description,
		ReporterID:   reporterID,
		ReporterName: reporterName,
		Media:        input.Media,
		Score:        input.Score,
	})
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Report merged successfully",
		"issue":   merged,
	})
}
