package similarity

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"fixmycity-be/models"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MergeInput is the reporting citizen's contribution to an existing issue.
type MergeInput struct {
	Description  string
	ReporterID   string
	ReporterName string
	Media        []models.MediaItem
	Score        float64
}

// Merger appends a new report's content to an existing open issue. It never
// touches votes; voting is an independent action.
type Merger struct {
	Issues *mongo.Collection
	Merges *mongo.Collection
	Cache  *redis.Client
}

// MergeIntoIssue appends the description entry and media to the target issue
// in a single update. The open-status precondition on the update filter is
// the compare-and-swap: a concurrent resolve or delete between the read and
// the write surfaces as ErrConflict or ErrNotFound, never as a silent merge.
func (m *Merger) MergeIntoIssue(ctx context.Context, issueID primitive.ObjectID, in MergeInput) (*models.Issue, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description must not be empty", ErrValidation)
	}

	var issue models.Issue
	err := m.Issues.FindOne(ctx, bson.M{"_id": issueID}).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if issue.Status == models.Resolved {
		return nil, fmt.Errorf("%w: issue is resolved", ErrConflict)
	}

	now := time.Now()
	media := in.Media
	if media == nil {
		media = []models.MediaItem{}
	}

	update := bson.M{
		"$push": bson.M{
			"description": models.DescriptionEntry{Text: in.Description, Name: in.ReporterName, Date: now},
			"media":       bson.M{"$each": media},
		},
		"$set": bson.M{"updatedAt": now},
	}
	filter := bson.M{
		"_id":    issueID,
		"status": bson.M{"$ne": string(models.Resolved)},
	}

	var merged models.Issue
	err = m.Issues.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&merged)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Distinguish a concurrent delete from a concurrent resolve.
			if err := m.Issues.FindOne(ctx, bson.M{"_id": issueID}).Err(); err == mongo.ErrNoDocuments {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("%w: issue changed state before the merge could be saved", ErrConflict)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if m.Merges != nil {
		record := models.MergeRecord{
			TargetIssueID: issueID,
			ReporterID:    in.ReporterID,
			ReporterName:  in.ReporterName,
			Score:         in.Score,
			MergedAt:      now,
		}
		if _, err := m.Merges.InsertOne(ctx, record); err != nil {
			log.Println("Failed to record merge audit entry:", err)
		}
	}

	retriever := Retriever{Cache: m.Cache}
	retriever.Invalidate(ctx, &merged)

	return &merged, nil
}
