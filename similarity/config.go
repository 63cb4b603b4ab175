package similarity

import (
	"os"
	"strconv"
	"time"
)

// Config holds the scoring and selection knobs. The weights and thresholds
// are fixed choices, overridable through the environment for tuning.
type Config struct {
	// Threshold is the minimum combined score for a candidate to be
	// reported as a duplicate.
	Threshold float64

	// MaxResults caps the number of duplicates returned per request.
	MaxResults int

	// GeoRadiusMeters is the distance at which geographic similarity
	// reaches zero.
	GeoRadiusMeters float64

	// TextWeight and GeoWeight blend the two component scores and sum to 1.
	TextWeight float64
	GeoWeight  float64

	// ScoreWorkers bounds concurrent per-candidate scoring.
	ScoreWorkers int

	// CacheTTL is how long a candidate pool stays in Redis.
	CacheTTL time.Duration
}

// DefaultConfig returns the documented defaults: 0.7/0.3 text/geo weighting,
// 0.5 duplicate threshold, 500 m radius, top 5 results.
func DefaultConfig() Config {
	return Config{
		Threshold:       0.5,
		MaxResults:      5,
		GeoRadiusMeters: 500,
		TextWeight:      0.7,
		GeoWeight:       0.3,
		ScoreWorkers:    8,
		CacheTTL:        60 * time.Second,
	}
}

// LoadConfig returns DefaultConfig with environment overrides applied.
func LoadConfig() Config {
	cfg := DefaultConfig()
	if v, err := strconv.ParseFloat(os.Getenv("SIMILARITY_THRESHOLD"), 64); err == nil && v >= 0 && v <= 1 {
		cfg.Threshold = v
	}
	if v, err := strconv.Atoi(os.Getenv("SIMILARITY_MAX_RESULTS")); err == nil && v > 0 {
		cfg.MaxResults = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("GEO_RADIUS_METERS"), 64); err == nil && v > 0 {
		cfg.GeoRadiusMeters = v
	}
	if v, err := strconv.Atoi(os.Getenv("CANDIDATE_CACHE_TTL_SECONDS")); err == nil && v > 0 {
		cfg.CacheTTL = time.Duration(v) * time.Second
	}
	return cfg
}
