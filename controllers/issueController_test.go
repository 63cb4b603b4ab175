package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fixmycity-be/models"
	"fixmycity-be/similarity"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const issuesNamespace = "fixmycity.issues"

func votedIssue(id primitive.ObjectID, votes map[string]models.VoteType) models.Issue {
	issue := models.Issue{
		ID:    id,
		Title: "Overflowing garbage bin near the market",
		Description: []models.DescriptionEntry{
			{Text: "Bin has not been emptied in days", Name: "Asha", Date: time.Now()},
		},
		Category:        models.GarbageSanitation,
		State:           "Karnataka",
		City:            "Bengaluru",
		Address:         "Market Road 560002",
		Status:          models.Pending,
		UserVotes:       votes,
		DateOfComplaint: time.Now(),
	}
	for _, v := range votes {
		if v == models.Upvote {
			issue.Upvotes++
		} else {
			issue.Downvotes++
		}
	}
	return issue
}

func issueDoc(mt *mtest.T, issue models.Issue) bson.D {
	raw, err := bson.Marshal(issue)
	require.NoError(mt, err)
	var doc bson.D
	require.NoError(mt, bson.Unmarshal(raw, &doc))
	return doc
}

func TestApplyVote(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("fresh upvote moves counter and map together", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		before := votedIssue(id, map[string]models.VoteType{"u1": models.Upvote})
		after := votedIssue(id, map[string]models.VoteType{"u1": models.Upvote, "u2": models.Upvote})

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch, issueDoc(mt, before)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: issueDoc(mt, after)}),
		)

		updated, err := applyVote(context.Background(), mt.Coll, id, "u2", models.Upvote)
		require.NoError(mt, err)
		assert.Equal(mt, 2, updated.Upvotes)
		assert.Equal(mt, models.Upvote, updated.UserVotes["u2"])

		var cmd bson.Raw
		for evt := mt.GetStartedEvent(); evt != nil; evt = mt.GetStartedEvent() {
			if evt.CommandName == "findAndModify" {
				cmd = evt.Command
				break
			}
		}
		require.NotNil(mt, cmd)

		inc, ok := cmd.Lookup("update", "$inc", "upvotes").AsInt64OK()
		require.True(mt, ok)
		assert.Equal(mt, int64(1), inc)
		// A first vote may only land if the reporter still has none.
		assert.False(mt, cmd.Lookup("query", "userVotes.u2", "$exists").Boolean())
	})

	mt.Run("repeat vote toggles off", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		before := votedIssue(id, map[string]models.VoteType{"u1": models.Upvote})
		after := votedIssue(id, map[string]models.VoteType{})

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch, issueDoc(mt, before)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: issueDoc(mt, after)}),
		)

		updated, err := applyVote(context.Background(), mt.Coll, id, "u1", models.Upvote)
		require.NoError(mt, err)
		assert.Equal(mt, 0, updated.Upvotes)

		var cmd bson.Raw
		for evt := mt.GetStartedEvent(); evt != nil; evt = mt.GetStartedEvent() {
			if evt.CommandName == "findAndModify" {
				cmd = evt.Command
				break
			}
		}
		require.NotNil(mt, cmd)
		_, lookupErr := cmd.LookupErr("update", "$unset", "userVotes.u1")
		assert.NoError(mt, lookupErr)
		assert.Equal(mt, string(models.Upvote), cmd.Lookup("query", "userVotes.u1").StringValue())
	})

	mt.Run("missing issue is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch))

		_, err := applyVote(context.Background(), mt.Coll, primitive.NewObjectID(), "u2", models.Upvote)
		assert.ErrorIs(mt, err, similarity.ErrNotFound)
	})

	mt.Run("delete racing the vote is not found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch,
				issueDoc(mt, votedIssue(id, map[string]models.VoteType{}))),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch),
		)

		_, err := applyVote(context.Background(), mt.Coll, id, "u2", models.Upvote)
		assert.ErrorIs(mt, err, similarity.ErrNotFound)
	})

	mt.Run("concurrent vote by the same reporter is a conflict", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch,
				issueDoc(mt, votedIssue(id, map[string]models.VoteType{}))),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch,
				issueDoc(mt, votedIssue(id, map[string]models.VoteType{"u2": models.Downvote}))),
		)

		_, err := applyVote(context.Background(), mt.Coll, id, "u2", models.Upvote)
		assert.ErrorIs(mt, err, similarity.ErrConflict)
	})
}

func TestVoteRejectsNonStringReporter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/issue/:id/vote", func(c *gin.Context) {
		// A corrupted auth context must never reach the vote logic.
		c.Set("reporter_id", 12345)
		VoteOnIssue(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/issue/64f000000000000000000000/vote",
		strings.NewReader(`{"vote":"upvote"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVoteRejectsMissingReporter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/issue/:id/vote", VoteOnIssue)

	req := httptest.NewRequest(http.MethodPost, "/api/issue/64f000000000000000000000/vote",
		strings.NewReader(`{"vote":"upvote"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
