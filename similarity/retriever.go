package similarity

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"time"

	"fixmycity-be/models"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var pincodeRegex = regexp.MustCompile(`\b\d{6}\b`)

// ExtractPincode pulls the 6-digit postal code out of a free-text address.
// Returns "" when the address carries none.
func ExtractPincode(address string) string {
	return pincodeRegex.FindString(address)
}

// Locality scopes the duplicate search. State+City is preferred; Pincode is
// the fallback when the caller only has a raw address.
type Locality struct {
	State   string
	City    string
	Pincode string
}

// Empty reports whether the locality carries no usable signal.
func (l Locality) Empty() bool {
	return (l.State == "" || l.City == "") && l.Pincode == ""
}

func (l Locality) cacheSuffix() string {
	if l.State != "" && l.City != "" {
		return l.State + ":" + l.City
	}
	return "pin:" + l.Pincode
}

// Retriever fetches the pool of open issues eligible for duplicate
// comparison. Pools are cached in Redis for a short TTL; a missing or
// failing cache degrades to a direct read.
type Retriever struct {
	Issues *mongo.Collection
	Cache  *redis.Client
	TTL    time.Duration
}

func cacheKey(category string, loc Locality) string {
	return fmt.Sprintf("candidates:%s:%s", category, loc.cacheSuffix())
}

// eligibilityFilter builds the Mongo filter for the candidate pool: same
// category and locality, not Resolved, never the issue being reported.
func eligibilityFilter(category string, loc Locality, exclude primitive.ObjectID) bson.M {
	filter := bson.M{
		"category": category,
		"status":   bson.M{"$in": []string{string(models.Pending), string(models.InProgress)}},
	}
	if loc.State != "" && loc.City != "" {
		filter["state"] = loc.State
		filter["city"] = loc.City
	} else {
		// Anchored so "560001" never matches a longer digit run.
		filter["address"] = bson.M{"$regex": `\b` + loc.Pincode + `\b`}
	}
	if !exclude.IsZero() {
		filter["_id"] = bson.M{"$ne": exclude}
	}
	return filter
}

// Candidates returns all issues eligible for comparison against a new report
// in the given category and locality. An empty pool is a normal result, not
// an error.
func (r *Retriever) Candidates(ctx context.Context, category string, loc Locality, exclude primitive.ObjectID) ([]models.Issue, error) {
	key := cacheKey(category, loc)

	// The cache only holds unfiltered pools; a request excluding a
	// specific issue goes straight to the store.
	if r.Cache != nil && exclude.IsZero() {
		if raw, err := r.Cache.Get(ctx, key).Result(); err == nil {
			var pool []models.Issue
			if err := json.Unmarshal([]byte(raw), &pool); err == nil {
				return pool, nil
			}
			log.Printf("discarding malformed candidate cache entry %s", key)
		}
	}

	cursor, err := r.Issues.Find(ctx, eligibilityFilter(category, loc, exclude))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer cursor.Close(ctx)

	pool := make([]models.Issue, 0)
	if err := cursor.All(ctx, &pool); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if r.Cache != nil && exclude.IsZero() {
		if raw, err := json.Marshal(pool); err == nil {
			if err := r.Cache.Set(ctx, key, raw, r.TTL).Err(); err != nil {
				log.Printf("failed to cache candidate pool %s: %v", key, err)
			}
		}
	}

	return pool, nil
}

// Invalidate drops the cached pools an issue belongs to. Called after any
// write that changes the issue's eligibility or content.
func (r *Retriever) Invalidate(ctx context.Context, issue *models.Issue) {
	if r.Cache == nil {
		return
	}
	keys := []string{
		cacheKey(string(issue.Category), Locality{State: issue.State, City: issue.City}),
	}
	if pin := ExtractPincode(issue.Address); pin != "" {
		keys = append(keys, cacheKey(string(issue.Category), Locality{Pincode: pin}))
	}
	if err := r.Cache.Del(ctx, keys...).Err(); err != nil {
		log.Printf("failed to invalidate candidate cache: %v", err)
	}
}
