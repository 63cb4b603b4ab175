package controllers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"fixmycity-be/config"
	"fixmycity-be/models"
	"fixmycity-be/similarity"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReportIssue handles the creation of a new issue, hit after the caller has
// decided no existing issue duplicates the report.
func ReportIssue(c *gin.Context) {
	reporterName := "Anonymous"
	if name, ok := c.Get("reporter_name"); ok {
		if s, ok := name.(string); ok && s != "" {
			reporterName = s
		}
	}

	var input struct {
		IssueTitle  string             `json:"issueTitle" binding:"required,max=200"`
		Description string             `json:"description" binding:"required,max=1000"`
		Category    string             `json:"category" binding:"required"`
		State       string             `json:"state" binding:"required"`
		City        string             `json:"city" binding:"required"`
		Address     string             `json:"address" binding:"required,max=300"`
		Latitude    *float64           `json:"lat,omitempty"`
		Longitude   *float64           `json:"lng,omitempty"`
		Media       []models.MediaItem `json:"media"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.ValidCategory(input.Category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	media := input.Media
	if media == nil {
		media = []models.MediaItem{}
	}

	now := time.Now()
	issue := models.Issue{
		ID:    primitive.NewObjectID(),
		Title: input.IssueTitle,
		Description: []models.DescriptionEntry{
			{Text: input.Description, Name: reporterName, Date: now},
		},
		Category:            models.IssueCategory(input.Category),
		State:               input.State,
		City:                input.City,
		Address:             input.Address,
		Latitude:            input.Latitude,
		Longitude:           input.Longitude,
		Media:               media,
		Status:              models.Pending,
		Upvotes:             0,
		Downvotes:           0,
		UserVotes:           map[string]models.VoteType{},
		ManagingAuthorities: []models.Authority{},
		Comments:            []models.PostEntry{},
		Announcements:       []models.PostEntry{},
		Feedback:            []models.PostEntry{},
		DateOfComplaint:     now,
		UpdatedAt:           now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := config.GetCollection("issues").InsertOne(ctx, issue); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to create issue"})
		return
	}

	// The new issue belongs in the candidate pool immediately.
	retriever := similarity.Retriever{Cache: config.RedisClient}
	retriever.Invalidate(ctx, &issue)

	c.JSON(http.StatusCreated, issue)
}

// GetIssue retrieves an issue by its ID.
func GetIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var issue models.Issue
	err = config.GetCollection("issues").FindOne(ctx, bson.M{"_id": issueID}).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	c.JSON(http.StatusOK, issue)
}

// UpdateIssueStatus moves an issue along Pending -> In-Progress -> Resolved.
// Any other transition is rejected here rather than trusting the caller's UI.
func UpdateIssueStatus(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	to := models.IssueStatus(input.Status)
	switch to {
	case models.Pending, models.InProgress, models.Resolved:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issueCollection := config.GetCollection("issues")

	var issue models.Issue
	err = issueCollection.FindOne(ctx, bson.M{"_id": issueID}).Decode(&issue)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	if !models.CanTransition(issue.Status, to) {
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid status transition"})
		return
	}

	// Guard against a concurrent transition between the read and the write.
	res, err := issueCollection.UpdateOne(ctx,
		bson.M{"_id": issueID, "status": issue.Status},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to update status"})
		return
	}
	if res.MatchedCount == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Issue changed state before the update could be saved"})
		return
	}

	issue.Status = to
	retriever := similarity.Retriever{Cache: config.RedisClient}
	retriever.Invalidate(ctx, &issue)

	c.JSON(http.StatusOK, gin.H{"message": "Status updated successfully", "status": to})
}

// applyVote loads the issue, computes the reporter's vote change and writes
// the counters and the userVotes entry in one guarded update. The filter pins
// the reporter's previous vote, so a concurrent vote by the same reporter
// misses and surfaces as ErrConflict; a deleted issue surfaces as ErrNotFound.
func applyVote(ctx context.Context, issues *mongo.Collection, issueID primitive.ObjectID, uid string, requested models.VoteType) (*models.Issue, error) {
	var issue models.Issue
	if err := issues.FindOne(ctx, bson.M{"_id": issueID}).Decode(&issue); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, similarity.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", similarity.ErrUpstream, err)
	}

	var previous *models.VoteType
	voteField := "userVotes." + uid
	filter := bson.M{"_id": issueID, voteField: bson.M{"$exists": false}}
	if v, ok := issue.UserVotes[uid]; ok {
		previous = &v
		filter = bson.M{"_id": issueID, voteField: v}
	}

	change := models.VoteChangeFor(previous, requested)

	update := bson.M{
		"$inc": bson.M{"upvotes": change.UpvoteDelta, "downvotes": change.DownvoteDelta},
	}
	if change.NewVote != nil {
		update["$set"] = bson.M{voteField: *change.NewVote, "updatedAt": time.Now()}
	} else {
		update["$set"] = bson.M{"updatedAt": time.Now()}
		update["$unset"] = bson.M{voteField: ""}
	}

	var updated models.Issue
	err := issues.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Distinguish a concurrent delete from a concurrent vote.
			if err := issues.FindOne(ctx, bson.M{"_id": issueID}).Err(); err == mongo.ErrNoDocuments {
				return nil, similarity.ErrNotFound
			}
			return nil, fmt.Errorf("%w: vote changed concurrently, please retry", similarity.ErrConflict)
		}
		return nil, fmt.Errorf("%w: %v", similarity.ErrUpstream, err)
	}

	return &updated, nil
}

// VoteOnIssue records the reporter's upvote or downvote. A reporter holds at
// most one active vote per issue: repeating the current vote removes it, a
// different vote replaces it. Counters and the userVotes map move together
// in one update.
func VoteOnIssue(c *gin.Context) {
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
	uid, ok := reporterVal.(string)
	if !ok || uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Vote models.VoteType `json:"vote" binding:"required,oneof=upvote downvote"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	updated, err := applyVote(ctx, config.GetCollection("issues"), issueID, uid, input.Vote)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upvotes":   updated.Upvotes,
		"downvotes": updated.Downvotes,
		"vote":      updated.UserVotes[uid],
	})
}

// appendPost pushes a comment, announcement or feedback entry onto the
// named sequence. extraFilter tightens the precondition (feedback requires a
// Resolved issue).
func appendPost(c *gin.Context, field string, extraFilter bson.M) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	authorName := "Anonymous"
	if name, ok := c.Get("reporter_name"); ok {
		if s, ok := name.(string); ok && s != "" {
			authorName = s
		}
	}

	var input struct {
		Text string `json:"text" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(input.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text must not be empty"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{"_id": issueID}
	for k, v := range extraFilter {
		filter[k] = v
	}

	entry := models.PostEntry{Name: authorName, Text: input.Text, Date: time.Now()}
	res, err := config.GetCollection("issues").UpdateOne(ctx, filter,
		bson.M{"$push": bson.M{field: entry}, "$set": bson.M{"updatedAt": entry.Date}})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to save " + field})
		return
	}
	if res.MatchedCount == 0 {
		if len(extraFilter) > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Issue is not in a state that accepts " + field})
		} else {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Saved", field: entry})
}

// AddComment appends a citizen comment to an issue.
func AddComment(c *gin.Context) {
	appendPost(c, "comments", nil)
}

// AddAnnouncement appends an authority announcement to an issue.
func AddAnnouncement(c *gin.Context) {
	appendPost(c, "announcements", nil)
}

// AddFeedback appends citizen feedback; only resolved issues accept it.
func AddFeedback(c *gin.Context) {
	appendPost(c, "feedback", bson.M{"status": string(models.Resolved)})
}

// GetIssueAnalytics returns analytical data about issues
func GetIssueAnalytics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issueCollection := config.GetCollection("issues")

	// Get issues by category using aggregation
	categoryPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$category",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	categoryCursor, err := issueCollection.Aggregate(ctx, categoryPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get category analytics"})
		return
	}
	defer categoryCursor.Close(ctx)

	var issuesByCategory []bson.M
	if err := categoryCursor.All(ctx, &issuesByCategory); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode category analytics"})
		return
	}

	// Reports filed per day over the last 7 days
	var last7Days []gin.H
	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

		nextDate := date.AddDate(0, 0, 1)

		count, err := issueCollection.CountDocuments(ctx, bson.M{
			"dateOfComplaint": bson.M{
				"$gte": date,
				"$lt":  nextDate,
			},
		})
		if err != nil {
			count = 0
		}

		last7Days = append(last7Days, gin.H{
			"date":  date.Format("2006-01-02"),
			"count": count,
		})
	}

	// Top upvoted among the 50 most recent issues
	findOptions := options.Find().
		SetSort(bson.D{{Key: "dateOfComplaint", Value: -1}}).
		SetLimit(50)

	cursor, err := issueCollection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues for vote analysis"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode issues"})
		return
	}

	type topIssue struct {
		ID       primitive.ObjectID `json:"id"`
		Title    string             `json:"title"`
		Category string             `json:"category"`
		Upvotes  int                `json:"upvotes"`
	}

	var topIssues []topIssue
	for _, issue := range issues {
		topIssues = append(topIssues, topIssue{
			ID:       issue.ID,
			Title:    issue.Title,
			Category: string(issue.Category),
			Upvotes:  issue.Upvotes,
		})
	}

	sort.Slice(topIssues, func(i, j int) bool {
		return topIssues[i].Upvotes > topIssues[j].Upvotes
	})

	if len(topIssues) > 5 {
		topIssues = topIssues[:5]
	}

	totalIssues, err := issueCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalIssues = 0
	}

	openIssues, err := issueCollection.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []string{string(models.Pending), string(models.InProgress)}},
	})
	if err != nil {
		openIssues = 0
	}

	resolvedIssues, err := issueCollection.CountDocuments(ctx, bson.M{
		"status": string(models.Resolved),
	})
	if err != nil {
		resolvedIssues = 0
	}

	totalMerges, err := config.GetCollection("merges").CountDocuments(ctx, bson.M{})
	if err != nil {
		totalMerges = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"issuesByCategory": issuesByCategory,
		"last7Days":        last7Days,
		"topUpvotedIssues": topIssues,
		"totalIssues":      totalIssues,
		"openIssues":       openIssues,
		"resolvedIssues":   resolvedIssues,
		"totalMerges":      totalMerges,
	})
}

// RecentIssues returns the most recent issues that have coordinates, for
// the portal's map view.
func RecentIssues(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	limit := 19

	filter := bson.M{
		"lat": bson.M{"$exists": true, "$ne": nil},
		"lng": bson.M{"$exists": true, "$ne": nil},
	}

	projection := bson.M{
		"_id":             1,
		"issueTitle":      1,
		"lat":             1,
		"lng":             1,
		"address":         1,
		"category":        1,
		"status":          1,
		"dateOfComplaint": 1,
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "dateOfComplaint", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(projection)

	cursor, err := config.GetCollection("issues").Find(ctx, filter, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve recent issues"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode recent issues"})
		return
	}

	type recentIssue struct {
		ID              string    `json:"issueId"`
		Title           string    `json:"title"`
		Latitude        float64   `json:"lat"`
		Longitude       float64   `json:"lng"`
		Address         string    `json:"address"`
		Category        string    `json:"category,omitempty"`
		Status          string    `json:"status,omitempty"`
		DateOfComplaint time.Time `json:"dateOfComplaint,omitempty"`
	}

	response := make([]recentIssue, 0, len(issues))
	for _, issue := range issues {
		if issue.Latitude != nil && issue.Longitude != nil {
			response = append(response, recentIssue{
				ID:              issue.ID.Hex(),
				Title:           issue.Title,
				Latitude:        *issue.Latitude,
				Longitude:       *issue.Longitude,
				Address:         issue.Address,
				Category:        string(issue.Category),
				Status:          string(issue.Status),
				DateOfComplaint: issue.DateOfComplaint,
			})
		}
	}

	c.JSON(http.StatusOK, response)
}
