package model

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetPayload_Validate(t *testing.T) {
	t.Parallel()
	neg := -1
	negF := -0.5
	long := strings.Repeat("x", MaxNotesLen+1)

	ok := SetPayload{Weight: 80, Reps: 5, WeightUnit: UnitKg}
	require.NoError(t, ok.Validate())

	zero := SetPayload{WeightUnit: UnitLbs}
	require.NoError(t, zero.Validate())

	cases := map[string]SetPayload{
		"nan weight": {Weight: math.NaN(), WeightUnit: UnitKg},
		"inf weight": {Weight: math.Inf(1), WeightUnit: UnitKg},
		"neg weight": {Weight: -1, WeightUnit: UnitKg},
		"neg reps":   {Reps: -1, WeightUnit: UnitKg},
		"neg dur":    {DurationSeconds: &neg, WeightUnit: UnitKg},
		"neg dist":   {Distance: &negF, WeightUnit: UnitKg},
		"neg cal":    {Calories: &negF, WeightUnit: UnitKg},
		"bad unit":   {WeightUnit: "stone"},
		"empty unit": {},
		"long notes": {Notes: &long, WeightUnit: UnitKg},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, p.Validate())
		})
	}
}

func TestQueueItem_Due(t *testing.T) {
	t.Parallel()
	now := time.Now()
	later := now.Add(time.Second)
	earlier := now.Add(-time.Second)

	require.True(t, QueueItem{Status: StatusQueued}.Due(now))
	require.True(t, QueueItem{Status: StatusFailed, NextRetryAt: &earlier}.Due(now))
	require.True(t, QueueItem{Status: StatusFailed, NextRetryAt: &now}.Due(now))
	require.False(t, QueueItem{Status: StatusFailed, NextRetryAt: &later}.Due(now))
	require.False(t, QueueItem{Status: StatusSynced}.Due(now))
	require.False(t, QueueItem{Status: StatusRejected}.Due(now))
}
