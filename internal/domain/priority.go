package domain

// Priority is passed through to materialized tasks; the engine does not rank by it.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// DefaultPriority applies when a draft leaves priority empty.
const DefaultPriority = PriorityP3

func (p Priority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4:
		return true
	}
	return false
}
