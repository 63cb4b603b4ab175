package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	RoadTraffic       IssueCategory = "Road & Traffic Issues"
	WaterDrainage     IssueCategory = "Water & Drainage"
	GarbageSanitation IssueCategory = "Garbage & Sanitation"
	Electricity       IssueCategory = "Electricity"
	Other             IssueCategory = "Other"
)

// ValidCategory reports whether s is part of the category catalog.
func ValidCategory(s string) bool {
	switch IssueCategory(s) {
	case RoadTraffic, WaterDrainage, GarbageSanitation, Electricity, Other:
		return true
	}
	return false
}

// IssueStatus enum
type IssueStatus string

const (
	Pending    IssueStatus = "Pending"
	InProgress IssueStatus = "In-Progress"
	Resolved   IssueStatus = "Resolved"
)

// allowedTransitions is the forward-only status table. Resolved is terminal.
var allowedTransitions = map[IssueStatus]IssueStatus{
	Pending:    InProgress,
	InProgress: Resolved,
}

// CanTransition reports whether an issue may move from one status to another.
func CanTransition(from, to IssueStatus) bool {
	return allowedTransitions[from] == to
}

// VoteType enum
type VoteType string

const (
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"
)

// DescriptionEntry is one citizen's contribution to an issue's description.
// The sequence is append-only and ordered by submission.
type DescriptionEntry struct {
	Text string    `bson:"text" json:"text"`
	Name string    `bson:"name" json:"name"`
	Date time.Time `bson:"date" json:"date"`
}

// MediaItem is an uploaded photo or video attached to an issue.
type MediaItem struct {
	URL  string `bson:"url" json:"url"`
	Type string `bson:"type" json:"type"` // "image" or "video"
}

// Authority is an official account managing an issue.
type Authority struct {
	AuthorityID   string `bson:"authorityId" json:"authorityId"`
	AuthorityName string `bson:"authorityName" json:"authorityName"`
}

// PostEntry is a comment, announcement or feedback entry on an issue.
type PostEntry struct {
	Name string    `bson:"name" json:"name"`
	Text string    `bson:"text" json:"text"`
	Date time.Time `bson:"date" json:"date"`
}

// Issue represents a civic issue reported by one or more citizens.
type Issue struct {
	ID                  primitive.ObjectID  `bson:"_id,omitempty" json:"issueId"`
	Title               string              `bson:"issueTitle" json:"issueTitle"`
	Description         []DescriptionEntry  `bson:"description" json:"description"`
	Category            IssueCategory       `bson:"category" json:"category"`
	State               string              `bson:"state" json:"state"`
	City                string              `bson:"city" json:"city"`
	Address             string              `bson:"address" json:"address"`
	Latitude            *float64            `bson:"lat,omitempty" json:"lat,omitempty"`
	Longitude           *float64            `bson:"lng,omitempty" json:"lng,omitempty"`
	Media               []MediaItem         `bson:"media" json:"media"`
	Status              IssueStatus         `bson:"status" json:"status"`
	Upvotes             int                 `bson:"upvotes" json:"upvotes"`
	Downvotes           int                 `bson:"downvotes" json:"downvotes"`
	UserVotes           map[string]VoteType `bson:"userVotes" json:"userVotes"`
	ManagingAuthorities []Authority         `bson:"managingAuthorities" json:"managingAuthorities"`
	Comments            []PostEntry         `bson:"comments" json:"comments"`
	Announcements       []PostEntry         `bson:"announcements" json:"announcements"`
	Feedback            []PostEntry         `bson:"feedback" json:"feedback"`
	DateOfComplaint     time.Time           `bson:"dateOfComplaint" json:"dateOfComplaint"`
	UpdatedAt           time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// FlattenedDescription joins all description texts in submission order,
// the form the similarity scorer works on.
func (i *Issue) FlattenedDescription() string {
	parts := make([]string, 0, len(i.Description))
	for _, d := range i.Description {
		parts = append(parts, d.Text)
	}
	return strings.Join(parts, " ")
}

// VoteChange is the delta a vote request produces. NewVote is nil when the
// request removed the reporter's existing vote.
type VoteChange struct {
	UpvoteDelta   int
	DownvoteDelta int
	NewVote       *VoteType
}

// VoteChangeFor computes the counter deltas for a vote request so that the
// upvote/downvote counters always match the tally of the userVotes map.
// Repeating the current vote removes it; a different vote replaces it.
func VoteChangeFor(previous *VoteType, requested VoteType) VoteChange {
	var change VoteChange

	if previous != nil {
		if *previous == Upvote {
			change.UpvoteDelta--
		} else {
			change.DownvoteDelta--
		}
		if *previous == requested {
			return change // toggle off
		}
	}

	if requested == Upvote {
		change.UpvoteDelta++
	} else {
		change.DownvoteDelta++
	}
	v := requested
	change.NewVote = &v
	return change
}

// CountVotes tallies a userVotes map.
func CountVotes(votes map[string]VoteType) (upvotes, downvotes int) {
	for _, v := range votes {
		if v == Upvote {
			upvotes++
		} else if v == Downvote {
			downvotes++
		}
	}
	return upvotes, downvotes
}
