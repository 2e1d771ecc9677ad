package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	a, err := ParseAction("")
	assert.NoError(t, err)
	assert.Equal(t, ActionWriteInfo, a)

	a, err = ParseAction(" move ")
	assert.NoError(t, err)
	assert.Equal(t, ActionMove, a)

	_, err = ParseAction("DELETE")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestClassifyAction(t *testing.T) {
	r1, r2 := "R1", "R2"
	wh := "WAREHOUSE"

	base := Snapshot{Quantity: 10, RackLocation: &r1}

	cases := []struct {
		name      string
		after     Snapshot
		requested Action
		want      Action
	}{
		{"lifecycle kept", Snapshot{Quantity: 0}, ActionReuse, ActionReuse},
		{"audit kept", base, ActionAudit, ActionAudit},
		{"register kept", Snapshot{Quantity: 3, RackLocation: &r2}, ActionRegister, ActionRegister},
		{"qty change keeps hint", Snapshot{Quantity: 7, RackLocation: &r1}, ActionAdjustQty, ActionAdjustQty},
		{"qty and rack change keeps hint", Snapshot{Quantity: 7, RackLocation: &r2}, ActionWriteInfo, ActionWriteInfo},
		{"rack change is move", Snapshot{Quantity: 10, RackLocation: &r2}, ActionWriteInfo, ActionMove},
		{"rack cleared is move", Snapshot{Quantity: 10}, ActionAdjustQty, ActionMove},
		{"area change is move", Snapshot{Quantity: 10, RackLocation: &r1, Area: &wh}, ActionWriteInfo, ActionMove},
		{"nothing changed keeps hint", Snapshot{Quantity: 10, RackLocation: &r1}, ActionAdjustQty, ActionAdjustQty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyAction(base, tc.after, tc.requested))
		})
	}
}
