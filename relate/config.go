package relate

import (
	"fmt"
	"os"
	"runtime"
)

// OutputFormat selects the RDF serialization emitted by the serializer.
type OutputFormat int

const (
	Turtle OutputFormat = iota
	NTriples
)

// Config is the single frozen configuration threaded by reference through
// every component. It is built once, checked by Validate, and never mutated
// afterward -- components read it, none of them write to it.
type Config struct {
	InputPath  string
	OutputPath string
	Format     OutputFormat

	NoAreaGeomRelations bool
	NoNodeGeomRelations bool
	NoWayGeomRelations  bool
	NoFacts             bool

	MinAreaEnvelopeRatio float64
	SimplifyGeometries   float64
	WKTPrecision         int
	AdminLevelFilter     int

	NumThreads       int
	CacheMaxEntries  int
	MaxCutoutEntries int
	BoxGridZoom      uint8

	TempDir string

	// BboxFilter, when non-empty, restricts staged features to those
	// intersecting the given region. See region.go.
	BboxFilter string
}

// DefaultConfig returns a Config with every optional field at its
// documented default, ready for CLI flags to override.
func DefaultConfig() Config {
	return Config{
		Format:               Turtle,
		MinAreaEnvelopeRatio: 0.01,
		SimplifyGeometries:   0,
		WKTPrecision:         7,
		AdminLevelFilter:     0,
		NumThreads:           runtime.NumCPU(),
		CacheMaxEntries:      4096,
		MaxCutoutEntries:     4096,
		BoxGridZoom:          16,
		TempDir:              os.TempDir(),
	}
}

// Validate checks the configuration-inconsistency class of error from §7:
// fatal, and must be checked before staging begins.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return &ConfigError{Field: "InputPath", Msg: "required"}
	}
	if c.OutputPath == "" {
		return &ConfigError{Field: "OutputPath", Msg: "required"}
	}
	if c.NumThreads < 1 {
		return &ConfigError{Field: "NumThreads", Msg: "must be >= 1"}
	}
	if c.CacheMaxEntries < 1 {
		return &ConfigError{Field: "CacheMaxEntries", Msg: "must be >= 1"}
	}
	if c.MinAreaEnvelopeRatio < 0 || c.MinAreaEnvelopeRatio > 1 {
		return &ConfigError{Field: "MinAreaEnvelopeRatio", Msg: "must be in [0, 1]"}
	}
	if c.WKTPrecision < 0 {
		return &ConfigError{Field: "WKTPrecision", Msg: "must be >= 0"}
	}
	if c.BoxGridZoom == 0 || c.BoxGridZoom > 24 {
		return &ConfigError{Field: "BoxGridZoom", Msg: "must be in [1, 24]"}
	}
	if c.TempDir == "" {
		return &ConfigError{Field: "TempDir", Msg: "required"}
	}
	info, err := os.Stat(c.TempDir)
	if err != nil || !info.IsDir() {
		return &ConfigError{Field: "TempDir", Msg: fmt.Sprintf("%q is not a writable directory", c.TempDir)}
	}
	probe, err := os.CreateTemp(c.TempDir, ".relate-writable-check-*")
	if err != nil {
		return &ConfigError{Field: "TempDir", Msg: fmt.Sprintf("%q is not writable: %v", c.TempDir, err)}
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}
