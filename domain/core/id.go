package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	AthleteID  ID
	FindingID  ID
	InsightID  ID
	RecordID   ID
	ActivityID ID
	RuleID     string
)

// String conversions for domain IDs
func (id AthleteID) String() string  { return ID(id).String() }
func (id FindingID) String() string  { return ID(id).String() }
func (id InsightID) String() string  { return ID(id).String() }
func (id RecordID) String() string   { return ID(id).String() }
func (id ActivityID) String() string { return ID(id).String() }
func (id RuleID) String() string     { return string(id) }

// NewFindingID creates a new finding identifier
func NewFindingID() FindingID { return FindingID(NewID()) }

// NewInsightID creates a new insight identifier
func NewInsightID() InsightID { return InsightID(NewID()) }

// NewRecordID creates a new log record identifier
func NewRecordID() RecordID { return RecordID(NewID()) }

// ParseAthleteID parses a string into AthleteID
func ParseAthleteID(s string) (AthleteID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("athlete ID cannot be empty")
	}
	return AthleteID(strings.TrimSpace(s)), nil
}

// ParseInsightID parses a string into InsightID
func ParseInsightID(s string) (InsightID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("insight ID cannot be empty")
	}
	return InsightID(strings.TrimSpace(s)), nil
}
