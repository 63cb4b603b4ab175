package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MergeRecord is the audit trail row written when a citizen's report is
// merged into an existing issue instead of creating a new one.
type MergeRecord struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TargetIssueID primitive.ObjectID `bson:"targetIssueId" json:"targetIssueId"`
	ReporterID    string             `bson:"reporterId" json:"reporterId"`
	ReporterName  string             `bson:"reporterName" json:"reporterName"`
	Score         float64            `bson:"score,omitempty" json:"score,omitempty"`
	MergedAt      time.Time          `bson:"mergedAt" json:"mergedAt"`
}
