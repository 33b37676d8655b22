package model

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// MaxNotesLen bounds the free-text notes attached to a set.
const MaxNotesLen = 1000

// Validate checks the payload invariants shared by the client queue and the server:
// weight and reps finite and non-negative, optional metrics non-negative, a known unit.
func (p SetPayload) Validate() error {
	if math.IsNaN(p.Weight) || math.IsInf(p.Weight, 0) || p.Weight < 0 {
		return fmt.Errorf("weight must be a finite non-negative number")
	}
	if p.Reps < 0 {
		return fmt.Errorf("reps must be non-negative")
	}
	if p.DurationSeconds != nil && *p.DurationSeconds < 0 {
		return fmt.Errorf("durationSeconds must be non-negative")
	}
	if p.Distance != nil && !finiteNonNeg(*p.Distance) {
		return fmt.Errorf("distance must be a finite non-negative number")
	}
	if p.Calories != nil && !finiteNonNeg(*p.Calories) {
		return fmt.Errorf("calories must be a finite non-negative number")
	}
	if !p.WeightUnit.Valid() {
		return fmt.Errorf("weightUnit must be %q or %q", UnitKg, UnitLbs)
	}
	if p.Notes != nil && utf8.RuneCountInString(*p.Notes) > MaxNotesLen {
		return fmt.Errorf("notes longer than %d characters", MaxNotesLen)
	}
	return nil
}

func finiteNonNeg(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
