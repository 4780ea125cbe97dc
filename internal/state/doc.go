// Package state implements the metadata store (collaborator C2): the
// persisted view of stacks, segments, targets, and hunk ownership,
// backed by a Git ref via internal/state/storage.
package state

import "go.stackforge.dev/ws/internal/model"

// virtualBranchesKey is the single document key every mutation reads
// and writes atomically, per §6's "a single virtual_branches document
// must be readable atomically" requirement.
const virtualBranchesKey = "virtual_branches.json"

// HunkAssignment records a user's (or the engine's) choice of which
// stack owns an uncommitted hunk, keyed by a stable hunk identity so
// the assignment survives minor, non-conflicting edits to the hunk's
// surrounding lines (§4.8).
type HunkAssignment struct {
	HunkKey string
	StackID model.StackID
}

// virtualBranchesDoc is the single JSON document persisted under
// virtualBranchesKey.
type virtualBranchesDoc struct {
	Stacks          []model.Stack     `json:"stacks"`
	DefaultTarget   *model.Target     `json:"default_target,omitempty"`
	HunkAssignments []HunkAssignment  `json:"hunk_assignments,omitempty"`
	SchemaVersion   int               `json:"schema_version"`
}

const currentSchemaVersion = 1
