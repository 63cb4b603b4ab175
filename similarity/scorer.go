package similarity

import (
	"math"
	"strings"

	"fixmycity-be/models"
)

// Query is the prospective new report being compared against the pool.
type Query struct {
	Title       string
	Description string
	Latitude    *float64
	Longitude   *float64
}

const (
	earthRadiusMeters = 6371000

	// Coordinates this close are the same spot as far as a civic report
	// is concerned; geo similarity gets full credit below it.
	fullCreditMeters = 10
)

// normalizeTokens lowercases s, replaces punctuation with spaces and splits
// into tokens.
func normalizeTokens(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

func termFrequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}

// cosine computes the cosine similarity of two term-frequency vectors.
func cosine(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for t, fa := range a {
		normA += float64(fa * fa)
		if fb, ok := b[t]; ok {
			dot += float64(fa * fb)
		}
	}
	for _, fb := range b {
		normB += float64(fb * fb)
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TextScore is the lexical similarity of two texts in [0,1]. It is symmetric
// and deterministic: identical inputs score 1, disjoint vocabularies score 0.
func TextScore(a, b string) float64 {
	return cosine(termFrequencies(normalizeTokens(a)), termFrequencies(normalizeTokens(b)))
}

// haversineMeters is the great-circle distance between two coordinate pairs.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// GeoScore maps the distance between two points to [0,1]: full credit within
// fullCreditMeters, linear decay to zero at GeoRadiusMeters. Either side
// missing coordinates scores 0 without excluding the candidate.
func (c Config) GeoScore(aLat, aLng, bLat, bLng *float64) float64 {
	if aLat == nil || aLng == nil || bLat == nil || bLng == nil {
		return 0
	}
	d := haversineMeters(*aLat, *aLng, *bLat, *bLng)
	if d <= fullCreditMeters {
		return 1
	}
	if d >= c.GeoRadiusMeters {
		return 0
	}
	return 1 - (d-fullCreditMeters)/(c.GeoRadiusMeters-fullCreditMeters)
}

// Score computes the combined similarity between the query and a candidate
// issue. Text compares title plus accumulated description on both sides.
// When either side has no usable coordinates the text score carries full
// weight, so text alone can still qualify a match.
func (c Config) Score(q Query, candidate *models.Issue) (score float64, matchedOnTitle, matchedOnGeo bool) {
	queryText := q.Title + " " + q.Description
	candidateText := candidate.Title + " " + candidate.FlattenedDescription()

	textScore := TextScore(queryText, candidateText)
	geoScore := c.GeoScore(q.Latitude, q.Longitude, candidate.Latitude, candidate.Longitude)

	hasGeo := q.Latitude != nil && q.Longitude != nil &&
		candidate.Latitude != nil && candidate.Longitude != nil
	if hasGeo {
		score = c.TextWeight*textScore + c.GeoWeight*geoScore
	} else {
		score = textScore
	}

	matchedOnTitle = TextScore(q.Title, candidate.Title) >= c.Threshold
	matchedOnGeo = geoScore > 0
	return score, matchedOnTitle, matchedOnGeo
}
