package knn

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.K != DefaultK {
		t.Errorf("K = %d, want %d", cfg.K, DefaultK)
	}
	if cfg.FieldAggregation != SumAggregation {
		t.Errorf("FieldAggregation = %q, want %q", cfg.FieldAggregation, SumAggregation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if cfg.logger() == nil {
		t.Error("logger() returned nil")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "k zero", mutate: func(c *Config) { c.K = 0 }, wantErr: true},
		{name: "negative min word len", mutate: func(c *Config) { c.MinWordLen = -1 }, wantErr: true},
		{name: "min above max word len", mutate: func(c *Config) { c.MinWordLen, c.MaxWordLen = 6, 3 }, wantErr: true},
		{name: "min word len without max", mutate: func(c *Config) { c.MinWordLen = 6 }},
		{name: "unknown aggregation", mutate: func(c *Config) { c.FieldAggregation = "median" }, wantErr: true},
		{name: "max aggregation", mutate: func(c *Config) { c.FieldAggregation = MaxAggregation }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Validate() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    Config
		wantErr bool
	}{
		{
			name: "empty document keeps defaults",
			yaml: "",
			want: Config{K: DefaultK, FieldAggregation: SumAggregation},
		},
		{
			name: "all fields",
			yaml: `
k: 5
min_doc_freq: 1
min_term_freq: 2
max_query_terms: 10
min_word_len: 2
max_word_len: 20
boost: true
field_aggregation: max
`,
			want: Config{
				K:                5,
				MinDocFreq:       1,
				MinTermFreq:      2,
				MaxQueryTerms:    10,
				MinWordLen:       2,
				MaxWordLen:       20,
				Boost:            true,
				FieldAggregation: MaxAggregation,
			},
		},
		{
			name: "partial document",
			yaml: "k: 3\n",
			want: Config{K: 3, FieldAggregation: SumAggregation},
		},
		{
			name:    "unknown key",
			yaml:    "neighbours: 3\n",
			wantErr: true,
		},
		{
			name:    "invalid k",
			yaml:    "k: 0\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "k: [1, 2\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if *cfg != tt.want {
				t.Errorf("ParseConfig() = %+v, want %+v", *cfg, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knn.yaml")
	if err := os.WriteFile(path, []byte("k: 7\nfield_aggregation: mean\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.K != 7 || cfg.FieldAggregation != MeanAggregation {
		t.Errorf("LoadConfig() = %+v, want k=7 mean", *cfg)
	}

	c, err := NewKNearestNeighborClassifierWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewKNearestNeighborClassifierWithConfig() error = %v", err)
	}
	if c.K() != 7 {
		t.Errorf("K() = %d, want 7", c.K())
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file succeeded")
	}
}
