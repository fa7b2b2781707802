package events

import "github.com/livegal/livegal-core/core/narrative"

const (
	// KindBranchResolved identifies a successful branch generation.
	KindBranchResolved Kind = "branch.resolved"
	// KindBranchFailed identifies a failed branch generation.
	KindBranchFailed Kind = "branch.failed"
)

// BranchResolved carries a generated story beat.
type BranchResolved struct {
	Base
	Reply narrative.Reply
}

// NewBranchResolved creates a branch resolution event.
func NewBranchResolved(reply narrative.Reply) BranchResolved {
	return BranchResolved{Base: NewBase(KindBranchResolved), Reply: reply}
}

// BranchFailed carries the error of a failed branch generation. The
// session leaves dialogue and options untouched when it sees one.
type BranchFailed struct {
	Base
	Err error
}

// NewBranchFailed creates a branch failure event.
func NewBranchFailed(err error) BranchFailed {
	return BranchFailed{Base: NewBase(KindBranchFailed), Err: err}
}
