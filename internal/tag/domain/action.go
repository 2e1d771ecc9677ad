package domain

import "strings"

type Action string

const (
	ActionRegister   Action = "REGISTER"
	ActionWriteInfo  Action = "WRITE_INFO"
	ActionMove       Action = "MOVE"
	ActionAdjustQty  Action = "ADJUST_QTY"
	ActionAudit      Action = "AUDIT"
	ActionReuse      Action = "REUSE"
	ActionDeregister Action = "DEREGISTER"
)

// ParseAction accepts a caller-supplied hint. Empty means WRITE_INFO.
func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(raw))); a {
	case "":
		return ActionWriteInfo, nil
	case ActionRegister, ActionWriteInfo, ActionMove, ActionAdjustQty,
		ActionAudit, ActionReuse, ActionDeregister:
		return a, nil
	default:
		return "", ErrInvalidAction
	}
}

// Snapshot is the part of a tag row that drives action classification.
type Snapshot struct {
	Quantity     int
	Area         *string
	RackLocation *string
}

func SnapshotOf(t Tag) Snapshot {
	return Snapshot{
		Quantity:     t.Quantity,
		Area:         t.Area,
		RackLocation: t.RackLocation,
	}
}

// ClassifyAction picks the change-log label for a mutation.
//
// Lifecycle labels are kept as requested. A quantity change keeps the
// requested label. Otherwise an area or rack change becomes MOVE.
func ClassifyAction(before, after Snapshot, requested Action) Action {
	switch requested {
	case ActionRegister, ActionAudit, ActionReuse, ActionDeregister:
		return requested
	}

	if before.Quantity != after.Quantity {
		return requested
	}
	if !sameText(before.Area, after.Area) || !sameText(before.RackLocation, after.RackLocation) {
		return ActionMove
	}
	return requested
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
