// Package config loads and validates the dircompare configuration file.
package config

import (
	"fmt"

	"github.com/sdejongh/dircompare/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Compare     CompareConfig     `yaml:"compare"`
	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
	Run         RunConfig         `yaml:"run"`
	Pairs       []PairConfig      `yaml:"pairs"`
}

// CompareConfig holds the defaults applied to every folder pair
type CompareConfig struct {
	Variant                models.CompareVariant  `yaml:"variant"`
	Symlinks               models.SymlinkPolicy   `yaml:"symlinks"`
	FileTimeTolerance      int                    `yaml:"file_time_tolerance"`
	IgnoreTimeShiftMinutes []int                  `yaml:"ignore_time_shift_minutes,omitempty"`
	Filter                 models.FilterConfig    `yaml:"filter"`
	Direction              models.DirectionConfig `yaml:"direction"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	ScanWorkers    int   `yaml:"scan_workers"`
	ContentWorkers int   `yaml:"content_workers"`
	BandwidthLimit int64 `yaml:"bandwidth_limit"` // bytes per second, 0 = unlimited
	MaxDepth       int   `yaml:"max_depth"`
	MinChunk       int   `yaml:"min_chunk"`
	MaxChunk       int   `yaml:"max_chunk"`

	// ContentMemory caps the read buffers of all content workers together.
	// Each worker holds two chunks, so max_chunk is lowered to
	// content_memory / (2 * content_workers) when needed.
	ContentMemory int64 `yaml:"content_memory"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
	Color    bool   `yaml:"color"`
	// Report is an optional file receiving the JSON report (.json, .json.gz or .json.zst)
	Report string `yaml:"report,omitempty"`
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Format     string `yaml:"format"` // "json" or "text"
	Level      string `yaml:"level"`  // "debug", "info", "warn", "error"
	File       string `yaml:"file"`   // Log file path (empty = default log path)
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RunConfig holds settings of the comparison run itself
type RunConfig struct {
	LockDirectories      bool `yaml:"lock_directories"`
	LowerPriority        bool `yaml:"lower_priority"`
	PreventStandby       bool `yaml:"prevent_standby"`
	AllowUserInteraction bool `yaml:"allow_user_interaction"`
}

// PairConfig is one folder pair. Unset fields inherit the compare defaults.
type PairConfig struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`

	Variant                models.CompareVariant   `yaml:"compare,omitempty"`
	Symlinks               models.SymlinkPolicy    `yaml:"symlinks,omitempty"`
	FileTimeTolerance      *int                    `yaml:"file_time_tolerance,omitempty"`
	IgnoreTimeShiftMinutes []int                   `yaml:"ignore_time_shift_minutes,omitempty"`
	Filter                 *models.FilterConfig    `yaml:"filter,omitempty"`
	Direction              *models.DirectionConfig `yaml:"direction,omitempty"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Compare: CompareConfig{
			Variant:           models.CompareTimeSize,
			Symlinks:          models.SymlinksDirect,
			FileTimeTolerance: 2,
			Direction: models.DirectionConfig{
				Variant:   models.DirectionTwoWay,
				Conflicts: models.ConflictNone,
			},
		},
		Performance: PerformanceConfig{
			ScanWorkers:    4,
			ContentWorkers: 2,
			BandwidthLimit: 0,
			MaxDepth:       100,
			MinChunk:       8 * 1024,
			MaxChunk:       1024 * 1024 * 1024,
			ContentMemory:  256 * 1024 * 1024,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
			Color:    true,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Format:     "json",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
		Run: RunConfig{
			LockDirectories:      true,
			AllowUserInteraction: true,
		},
	}
}

// FolderPairs merges every pair with the compare defaults
func (c *Config) FolderPairs() []models.FolderPairCfg {
	out := make([]models.FolderPairCfg, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		out = append(out, c.folderPair(p))
	}
	return out
}

func (c *Config) folderPair(p PairConfig) models.FolderPairCfg {
	def := c.Compare
	fp := models.FolderPairCfg{
		LeftPhrase:             p.Left,
		RightPhrase:            p.Right,
		Variant:                def.Variant,
		Symlinks:               def.Symlinks,
		FileTimeTolerance:      def.FileTimeTolerance,
		IgnoreTimeShiftMinutes: def.IgnoreTimeShiftMinutes,
		Filter:                 def.Filter,
		Direction:              def.Direction,
	}
	if p.Variant != "" {
		fp.Variant = p.Variant
	}
	if p.Symlinks != "" {
		fp.Symlinks = p.Symlinks
	}
	if p.FileTimeTolerance != nil {
		fp.FileTimeTolerance = *p.FileTimeTolerance
	}
	if p.IgnoreTimeShiftMinutes != nil {
		fp.IgnoreTimeShiftMinutes = p.IgnoreTimeShiftMinutes
	}
	if p.Filter != nil {
		fp.Filter = mergeFilter(def.Filter, *p.Filter)
	}
	if p.Direction != nil {
		if p.Direction.Variant != "" {
			fp.Direction.Variant = p.Direction.Variant
		}
		if p.Direction.Conflicts != "" {
			fp.Direction.Conflicts = p.Direction.Conflicts
		}
	}
	return fp
}

// mergeFilter combines global and local filters: local includes replace the
// global ones, excludes accumulate, non-zero soft limits override.
func mergeFilter(global, local models.FilterConfig) models.FilterConfig {
	out := global
	if len(local.Include) > 0 {
		out.Include = local.Include
	}
	out.Exclude = append(append([]string(nil), global.Exclude...), local.Exclude...)
	if local.TimeSpan != 0 {
		out.TimeSpan = local.TimeSpan
	}
	if local.SizeMin != 0 {
		out.SizeMin = local.SizeMin
	}
	if local.SizeMax != 0 {
		out.SizeMax = local.SizeMax
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Performance.ScanWorkers < 1 {
		return &models.ValidationError{Field: "performance.scan_workers", Message: "must be at least 1"}
	}
	if c.Performance.ContentWorkers < 1 {
		return &models.ValidationError{Field: "performance.content_workers", Message: "must be at least 1"}
	}
	if c.Performance.BandwidthLimit < 0 {
		return &models.ValidationError{Field: "performance.bandwidth_limit", Message: "must not be negative"}
	}
	if c.Performance.MaxDepth < 1 {
		return &models.ValidationError{Field: "performance.max_depth", Message: "must be at least 1"}
	}
	if c.Performance.MinChunk < 512 {
		return &models.ValidationError{Field: "performance.min_chunk", Message: "must be at least 512 bytes"}
	}
	if c.Performance.MaxChunk < c.Performance.MinChunk {
		return &models.ValidationError{Field: "performance.max_chunk", Message: "must not be smaller than performance.min_chunk"}
	}
	if c.Performance.ContentMemory < 0 {
		return &models.ValidationError{Field: "performance.content_memory", Message: "must not be negative"}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{Field: "output.format", Message: "must be 'human' or 'json'"}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{Field: "logging.format", Message: "must be 'json' or 'text'"}
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{Field: "logging.level", Message: "must be 'debug', 'info', 'warn', or 'error'"}
	}

	for i, p := range c.FolderPairs() {
		if err := p.Validate(); err != nil {
			if ve, ok := err.(*models.ValidationError); ok {
				return &models.ValidationError{Field: pairField(i, ve.Field), Message: ve.Message}
			}
			return err
		}
		if !validDirection(p.Direction) {
			return &models.ValidationError{Field: pairField(i, "direction"), Message: "unknown variant or conflict policy"}
		}
	}
	return nil
}

func pairField(i int, field string) string {
	return fmt.Sprintf("pairs[%d].%s", i, field)
}

func validDirection(d models.DirectionConfig) bool {
	switch d.Variant {
	case models.DirectionTwoWay, models.DirectionMirror, models.DirectionUpdate:
	default:
		return false
	}
	switch d.Conflicts {
	case models.ConflictNone, models.ConflictLeftWins, models.ConflictRightWins, models.ConflictNewer:
		return true
	}
	return false
}
