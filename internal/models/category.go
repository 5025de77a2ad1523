package models

import "fmt"

// Category is the activity kind reported with a heartbeat. Values mirror
// the category vocabulary understood by wakatime-cli.
type Category string

const (
	CategoryCoding        Category = "coding"
	CategoryBuilding      Category = "building"
	CategoryIndexing      Category = "indexing"
	CategoryDebugging     Category = "debugging"
	CategoryBrowsing      Category = "browsing"
	CategoryRunningTests  Category = "running tests"
	CategoryWritingTests  Category = "writing tests"
	CategoryManualTesting Category = "manual testing"
	CategoryWritingDocs   Category = "writing docs"
	CategoryCodeReviewing Category = "code reviewing"
	CategoryCommunicating Category = "communicating"
	CategoryNotes         Category = "notes"
	CategoryResearching   Category = "researching"
	CategoryLearning      Category = "learning"
	CategoryDesigning     Category = "designing"
	CategoryAICoding      Category = "ai coding"
)

var allCategories = []Category{
	CategoryCoding,
	CategoryBuilding,
	CategoryIndexing,
	CategoryDebugging,
	CategoryBrowsing,
	CategoryRunningTests,
	CategoryWritingTests,
	CategoryManualTesting,
	CategoryWritingDocs,
	CategoryCodeReviewing,
	CategoryCommunicating,
	CategoryNotes,
	CategoryResearching,
	CategoryLearning,
	CategoryDesigning,
	CategoryAICoding,
}

// Categories returns the closed set of known categories.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory validates a configured category string.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category: %q", s)
	}
	return c, nil
}
