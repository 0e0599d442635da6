package chat

import (
	"time"
)

// ConfidenceConfig holds the confidence reported for each way an answer can be produced
type ConfidenceConfig struct {
	// Generated is used when the backend answered with documents in context
	Generated float64
	// GeneratedNoDocs is used when the backend answered without any documents
	GeneratedNoDocs float64
	// Fallback is used when generation failed and the templated answer was returned
	Fallback float64
	// Templated is used when generation is disabled and results exist
	Templated float64
	// TemplatedNoResults is used when generation is disabled and nothing was found
	TemplatedNoResults float64
}

func DefaultConfidence() ConfidenceConfig {
	return ConfidenceConfig{
		Generated:          0.9,
		GeneratedNoDocs:    0.5,
		Fallback:           0.5,
		Templated:          0.85,
		TemplatedNoResults: 0.3,
	}
}

// Config controls session limits and retrieval for the generator
type Config struct {
	MaxMessages int
	Expiry      time.Duration
	// RetrievalTop is the number of results fetched per question
	RetrievalTop int
	// RelevanceScale maps a retrieval score onto the [0,1] citation relevance
	RelevanceScale float64
}

func DefaultConfig() Config {
	return Config{
		MaxMessages:    50,
		Expiry:         30 * time.Minute,
		RetrievalTop:   5,
		RelevanceScale: 1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxMessages <= 0 {
		c.MaxMessages = d.MaxMessages
	}
	if c.Expiry <= 0 {
		c.Expiry = d.Expiry
	}
	if c.RetrievalTop <= 0 {
		c.RetrievalTop = d.RetrievalTop
	}
	if c.RelevanceScale <= 0 {
		c.RelevanceScale = d.RelevanceScale
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
