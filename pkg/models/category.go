package models

import "fmt"

// Category is the comparison outcome assigned to a tree object
type Category int

const (
	// FileEqual indicates both sides are considered identical
	FileEqual Category = iota
	// FileLeftSideOnly indicates the object exists on the left side only
	FileLeftSideOnly
	// FileRightSideOnly indicates the object exists on the right side only
	FileRightSideOnly
	// FileLeftNewer indicates the left side has the newer modification time
	FileLeftNewer
	// FileRightNewer indicates the right side has the newer modification time
	FileRightNewer
	// FileDifferentContent indicates the byte content (or link target) differs
	FileDifferentContent
	// FileDifferentMetadata indicates equal content with differing metadata (name case, time)
	FileDifferentMetadata
	// FileConflict indicates a result that must not be resolved automatically
	FileConflict
)

var categoryNames = map[Category]string{
	FileEqual:             "equal",
	FileLeftSideOnly:      "left_only",
	FileRightSideOnly:     "right_only",
	FileLeftNewer:         "left_newer",
	FileRightNewer:        "right_newer",
	FileDifferentContent:  "different",
	FileDifferentMetadata: "different_metadata",
	FileConflict:          "conflict",
}

// AllCategories lists every category in declaration order
var AllCategories = []Category{
	FileEqual,
	FileLeftSideOnly,
	FileRightSideOnly,
	FileLeftNewer,
	FileRightNewer,
	FileDifferentContent,
	FileDifferentMetadata,
	FileConflict,
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Category) UnmarshalText(text []byte) error {
	for cat, name := range categoryNames {
		if name == string(text) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", string(text))
}

// HasDescription reports whether objects of this category carry a description
func (c Category) HasDescription() bool {
	return c == FileConflict || c == FileDifferentMetadata
}

// DescribeCaseDiff explains a name difference that is limited to letter case
func DescribeCaseDiff(leftName, rightName string) string {
	return fmt.Sprintf("Items differ in name case only: %s <-> %s", leftName, rightName)
}

// CompareVariant selects the comparison strategy for a folder pair
type CompareVariant string

const (
	// CompareTimeSize compares modification time and file size
	CompareTimeSize CompareVariant = "time-size"
	// CompareContent compares byte content
	CompareContent CompareVariant = "content"
)

// IsValid checks if the variant is known
func (v CompareVariant) IsValid() bool {
	return v == CompareTimeSize || v == CompareContent
}

// SymlinkPolicy defines how symbolic links are handled during traversal
type SymlinkPolicy string

const (
	// SymlinksFollow dereferences links: directory links are descended into
	SymlinksFollow SymlinkPolicy = "follow"
	// SymlinksDirect records links as leaves without following them
	SymlinksDirect SymlinkPolicy = "direct"
)

// IsValid checks if the policy is known
func (p SymlinkPolicy) IsValid() bool {
	return p == SymlinksFollow || p == SymlinksDirect
}

// Rank returns the position of the policy in the PathKey ordering
func (p SymlinkPolicy) Rank() int {
	switch p {
	case SymlinksFollow:
		return 0
	case SymlinksDirect:
		return 1
	default:
		return 2
	}
}

// SyncDirection is the action the direction resolver planned for an object
type SyncDirection string

const (
	// SyncNone leaves both sides untouched
	SyncNone SyncDirection = "none"
	// SyncLeft writes the right side's state to the left
	SyncLeft SyncDirection = "left"
	// SyncRight writes the left side's state to the right
	SyncRight SyncDirection = "right"
)
