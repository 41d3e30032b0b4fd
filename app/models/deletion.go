package models

import "fmt"

// DeleteMode selects how a todo with children is removed.
type DeleteMode string

const (
	// DeleteSafe refuses to delete a todo that still has children.
	DeleteSafe DeleteMode = "safe"
	// DeleteCascade deletes the todo and its whole subtree.
	DeleteCascade DeleteMode = "cascade"
	// DeleteOrphan deletes the todo and promotes its direct children to roots.
	DeleteOrphan DeleteMode = "orphan"
)

// DeleteModes lists every accepted mode.
var DeleteModes = []DeleteMode{DeleteSafe, DeleteCascade, DeleteOrphan}

// ParseDeleteMode converts s into a DeleteMode. An empty string is rejected;
// callers pick their own default.
func ParseDeleteMode(s string) (DeleteMode, error) {
	switch DeleteMode(s) {
	case DeleteSafe, DeleteCascade, DeleteOrphan:
		return DeleteMode(s), nil
	case "":
		return "", fmt.Errorf("delete mode is required (one of safe, cascade, orphan)")
	}
	return "", fmt.Errorf("unknown delete mode %q (one of safe, cascade, orphan)", s)
}

// DeletionResult reports the outcome of a delete request.
type DeletionResult struct {
	Deleted       bool       `json:"deleted"`
	DeletedCount  int        `json:"deleted_count"`
	OrphanedCount int        `json:"orphaned_count"`
	ChildrenCount int        `json:"children_count,omitempty"`
	Mode          DeleteMode `json:"mode"`
	Error         string     `json:"error,omitempty"`
}
