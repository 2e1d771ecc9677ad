package domain

import (
	"strconv"
	"strings"
)

const emptyValue = "(none)"

// Transition is the before/after pair a verification can change.
type Transition struct {
	QtyBefore  int
	QtyAfter   int
	RackBefore *string
	RackAfter  *string
}

type Summary struct {
	Result  Result
	Notes   string
	Changes map[string]any
}

func (t Transition) QuantityChanged() bool {
	return t.QtyBefore != t.QtyAfter
}

func (t Transition) RackChanged() bool {
	return textValue(t.RackBefore) != textValue(t.RackAfter)
}

// Summarize renders change notes as "FIELD: old -> new" joined by "; ".
func Summarize(t Transition) Summary {
	notes := make([]string, 0, 2)
	changes := map[string]any{}

	if t.QuantityChanged() {
		notes = append(notes, "QTY: "+strconv.Itoa(t.QtyBefore)+" -> "+strconv.Itoa(t.QtyAfter))
		changes["quantity"] = map[string]any{"before": t.QtyBefore, "after": t.QtyAfter}
	}
	if t.RackChanged() {
		notes = append(notes, "RACK: "+display(t.RackBefore)+" -> "+display(t.RackAfter))
		changes["rack_location"] = map[string]any{"before": t.RackBefore, "after": t.RackAfter}
	}

	if len(notes) == 0 {
		return Summary{Result: ResultNoChanges}
	}
	return Summary{
		Result:  ResultChanged,
		Notes:   strings.Join(notes, "; "),
		Changes: changes,
	}
}

func display(v *string) string {
	if v == nil || *v == "" {
		return emptyValue
	}
	return *v
}

func textValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
