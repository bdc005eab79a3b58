package knn

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultK is the default number of neighbors
const DefaultK = 10

// Config contains the configuration of a KNearestNeighborClassifier.
//
// The similarity query thresholds follow MoreLikeThis: a value <= 0 keeps the
// MoreLikeThis default for that threshold.
type Config struct {
	// K is the number of neighbors retrieved per classification (>= 1)
	K int `yaml:"k"`

	// MinDocFreq is the minimum number of indexed documents a query term must appear in
	MinDocFreq int `yaml:"min_doc_freq"`

	// MinTermFreq is the minimum frequency of a query term in the input text
	MinTermFreq int `yaml:"min_term_freq"`

	// MaxQueryTerms caps the number of terms per field in the similarity query
	MaxQueryTerms int `yaml:"max_query_terms"`

	// MinWordLen and MaxWordLen bound query term length in runes (0 = unbounded)
	MinWordLen int `yaml:"min_word_len"`
	MaxWordLen int `yaml:"max_word_len"`

	// Boost weights query terms by relative tf-idf
	Boost bool `yaml:"boost"`

	// FieldAggregation combines the similarity scores of the text fields
	FieldAggregation ScoreAggregationKind `yaml:"field_aggregation"`

	// Logger receives debug records about training and searches. Nil discards.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a configuration with k = DefaultK, MoreLikeThis
// thresholds and Sum field aggregation.
func DefaultConfig() *Config {
	return &Config{
		K:                DefaultK,
		FieldAggregation: SumAggregation,
	}
}

// Validate reports configuration errors wrapped in ErrInvalidArgument.
func (c *Config) Validate() error {
	if c.K < 1 {
		return fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidArgument, c.K)
	}
	if c.MinWordLen < 0 || c.MaxWordLen < 0 {
		return fmt.Errorf("%w: word length bounds must not be negative", ErrInvalidArgument)
	}
	if c.MaxWordLen > 0 && c.MinWordLen > c.MaxWordLen {
		return fmt.Errorf("%w: min_word_len %d exceeds max_word_len %d", ErrInvalidArgument, c.MinWordLen, c.MaxWordLen)
	}
	if _, err := NewScoreAggregation(c.FieldAggregation); err != nil {
		return err
	}
	return nil
}

// ParseConfig decodes a YAML configuration on top of DefaultConfig and
// validates it. Unknown keys are rejected; an empty document yields the
// defaults.
//
// Example:
//
//	k: 5
//	min_doc_freq: 1
//	min_term_freq: 1
//	field_aggregation: max
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// logger returns the configured logger or one that discards.
func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}
