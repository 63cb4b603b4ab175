package similarity

import (
	"context"
	"testing"
	"time"

	"fixmycity-be/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const issuesNamespace = "fixmycity.issues"

func TestMergeRejectsBlankDescription(t *testing.T) {
	m := &Merger{}
	_, err := m.MergeIntoIssue(context.Background(), primitive.NewObjectID(), MergeInput{
		Description:  "   ",
		ReporterName: "Ravi",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func mergeTarget(id primitive.ObjectID, status models.IssueStatus) models.Issue {
	return models.Issue{
		ID:    id,
		Title: "Streetlight not working on 5th Avenue",
		Description: []models.DescriptionEntry{
			{Text: "Lamp post 14 has been dark for a week", Name: "Asha", Date: time.Now()},
		},
		Category:        models.Electricity,
		State:           "Karnataka",
		City:            "Bengaluru",
		Address:         "5th Avenue 560001",
		Status:          status,
		Upvotes:         3,
		Downvotes:       1,
		UserVotes:       map[string]models.VoteType{"u1": models.Upvote},
		DateOfComplaint: time.Now(),
	}
}

func issueDoc(mt *mtest.T, issue models.Issue) bson.D {
	raw, err := bson.Marshal(issue)
	require.NoError(mt, err)
	var doc bson.D
	require.NoError(mt, bson.Unmarshal(raw, &doc))
	return doc
}

func TestMergeIntoIssue(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	input := MergeInput{
		Description:  "Same lamp post, still dark at night",
		ReporterID:   "u2",
		ReporterName: "Ravi",
		Media:        []models.MediaItem{{URL: "https://cdn.example.com/lamp.jpg", Type: "image"}},
		Score:        0.8312,
	}

	mt.Run("appends description and media, never votes", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		target := mergeTarget(id, models.Pending)

		merged := target
		merged.Description = append([]models.DescriptionEntry{target.Description[0]},
			models.DescriptionEntry{Text: input.Description, Name: input.ReporterName, Date: time.Now()})
		merged.Media = input.Media

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch, issueDoc(mt, target)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: issueDoc(mt, merged)}),
			mtest.CreateSuccessResponse(),
		)

		m := &Merger{Issues: mt.Coll, Merges: mt.Coll.Database().Collection("merges")}
		got, err := m.MergeIntoIssue(context.Background(), id, input)
		require.NoError(mt, err)

		require.Len(mt, got.Description, 2)
		assert.Equal(mt, "Lamp post 14 has been dark for a week", got.Description[0].Text)
		assert.Equal(mt, input.Description, got.Description[1].Text)
		assert.Equal(mt, input.ReporterName, got.Description[1].Name)
		assert.Equal(mt, 3, got.Upvotes)
		assert.Equal(mt, 1, got.Downvotes)

		// The update command may only push content and stamp updatedAt; the
		// filter must still carry the open-status precondition.
		var cmd bson.Raw
		for evt := mt.GetStartedEvent(); evt != nil; evt = mt.GetStartedEvent() {
			if evt.CommandName == "findAndModify" {
				cmd = evt.Command
				break
			}
		}
		require.NotNil(mt, cmd)

		entry := cmd.Lookup("update", "$push", "description").Document()
		assert.Equal(mt, input.Description, entry.Lookup("text").StringValue())
		assert.Equal(mt, input.ReporterName, entry.Lookup("name").StringValue())
		assert.Equal(mt, string(models.Resolved), cmd.Lookup("query", "status", "$ne").StringValue())

		_, err = cmd.LookupErr("update", "$inc")
		assert.Error(mt, err)
		_, err = cmd.LookupErr("update", "$unset")
		assert.Error(mt, err)
	})

	mt.Run("resolved target is a conflict", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch,
				issueDoc(mt, mergeTarget(id, models.Resolved))),
		)

		m := &Merger{Issues: mt.Coll}
		_, err := m.MergeIntoIssue(context.Background(), id, input)
		assert.ErrorIs(mt, err, ErrConflict)

		// A resolved target must never reach the update.
		for evt := mt.GetStartedEvent(); evt != nil; evt = mt.GetStartedEvent() {
			assert.NotEqual(mt, "findAndModify", evt.CommandName)
		}
	})

	mt.Run("missing target is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch))

		m := &Merger{Issues: mt.Coll}
		_, err := m.MergeIntoIssue(context.Background(), primitive.NewObjectID(), input)
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("resolve racing the merge is a conflict", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch,
				issueDoc(mt, mergeTarget(id, models.Pending))),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch,
				issueDoc(mt, mergeTarget(id, models.Resolved))),
		)

		m := &Merger{Issues: mt.Coll}
		_, err := m.MergeIntoIssue(context.Background(), id, input)
		assert.ErrorIs(mt, err, ErrConflict)
	})

	mt.Run("delete racing the merge is not found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch,
				issueDoc(mt, mergeTarget(id, models.Pending))),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, issuesNamespace, mtest.FirstBatch),
		)

		m := &Merger{Issues: mt.Coll}
		_, err := m.MergeIntoIssue(context.Background(), id, input)
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}
