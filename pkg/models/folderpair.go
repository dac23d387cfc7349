package models

import (
	"time"
)

// FilterConfig holds the hard and soft filter settings of a folder pair
type FilterConfig struct {
	// Include patterns; empty means everything is included
	Include []string `yaml:"include,omitempty"`

	// Exclude patterns (gitignore syntax)
	Exclude []string `yaml:"exclude,omitempty"`

	// TimeSpan keeps only objects modified within this duration before the run (0 = off)
	TimeSpan time.Duration `yaml:"time_span,omitempty"`

	// SizeMin and SizeMax bound file sizes in bytes (0 = unbounded)
	SizeMin uint64 `yaml:"size_min,omitempty"`
	SizeMax uint64 `yaml:"size_max,omitempty"`
}

// DirectionVariant selects how the direction resolver plans synchronization
type DirectionVariant string

const (
	// DirectionTwoWay propagates changes from both sides
	DirectionTwoWay DirectionVariant = "two-way"
	// DirectionMirror makes the right side an exact copy of the left
	DirectionMirror DirectionVariant = "mirror"
	// DirectionUpdate copies new and newer files from left to right
	DirectionUpdate DirectionVariant = "update"
)

// ConflictPolicy defines how the direction resolver treats conflicts
type ConflictPolicy string

const (
	// ConflictNone leaves conflicts unresolved
	ConflictNone ConflictPolicy = "none"
	// ConflictLeftWins always uses the left version
	ConflictLeftWins ConflictPolicy = "left-wins"
	// ConflictRightWins always uses the right version
	ConflictRightWins ConflictPolicy = "right-wins"
	// ConflictNewer uses the version with the newer modification time
	ConflictNewer ConflictPolicy = "newer"
)

// DirectionConfig configures the sync-direction resolver of a folder pair
type DirectionConfig struct {
	Variant   DirectionVariant `yaml:"variant"`
	Conflicts ConflictPolicy   `yaml:"conflicts"`
}

// FolderPairCfg is one user-specified left/right root pair and its settings
type FolderPairCfg struct {
	// LeftPhrase and RightPhrase are unresolved path phrases (may contain macros)
	LeftPhrase  string `yaml:"left"`
	RightPhrase string `yaml:"right"`

	Variant  CompareVariant `yaml:"compare"`
	Symlinks SymlinkPolicy  `yaml:"symlinks"`

	// FileTimeTolerance in seconds
	FileTimeTolerance      int   `yaml:"file_time_tolerance"`
	IgnoreTimeShiftMinutes []int `yaml:"ignore_time_shift_minutes,omitempty"`

	Filter    FilterConfig    `yaml:"filter"`
	Direction DirectionConfig `yaml:"direction"`
}

// IsPartial reports whether exactly one side is filled in
func (c FolderPairCfg) IsPartial() bool {
	return (c.LeftPhrase == "") != (c.RightPhrase == "")
}

// IsEmpty reports whether neither side is filled in
func (c FolderPairCfg) IsEmpty() bool {
	return c.LeftPhrase == "" && c.RightPhrase == ""
}

// Validate checks if the folder pair configuration is valid
func (c FolderPairCfg) Validate() error {
	if !c.Variant.IsValid() {
		return &ValidationError{Field: "compare", Message: "must be 'time-size' or 'content'"}
	}
	if !c.Symlinks.IsValid() {
		return &ValidationError{Field: "symlinks", Message: "must be 'follow' or 'direct'"}
	}
	if c.FileTimeTolerance < 0 {
		return &ValidationError{Field: "file_time_tolerance", Message: "must not be negative"}
	}
	if c.Filter.SizeMax != 0 && c.Filter.SizeMin > c.Filter.SizeMax {
		return &ValidationError{Field: "filter.size_min", Message: "must not exceed filter.size_max"}
	}
	if c.Filter.TimeSpan < 0 {
		return &ValidationError{Field: "filter.time_span", Message: "must not be negative"}
	}
	return nil
}

// ResolvedFolderPair holds the concrete directory names derived from a FolderPairCfg
type ResolvedFolderPair struct {
	DirnameLeft  string
	DirnameRight string
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
