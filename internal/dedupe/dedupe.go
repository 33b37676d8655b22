// Package dedupe derives the stable identity used to collapse duplicate enqueue attempts.
package dedupe

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
)

// Keys are namespaced by payload schema version so an inert item from another
// version can never absorb a new enqueue.
var prefix = "v" + strconv.Itoa(model.PayloadSchemaVersion) + ":"

// Key returns a deterministic fingerprint of (sessionExerciseID, payload, createdAt).
// createdAt is taken at millisecond precision, matching what the queue persists.
func Key(sessionExerciseID uuid.UUID, p model.SetPayload, createdAt time.Time) string {
	var b strings.Builder
	field := func(name, v string) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte(';')
	}
	absent := "-"

	field("se", sessionExerciseID.String())
	field("w", strconv.FormatFloat(p.Weight, 'g', -1, 64))
	field("r", strconv.Itoa(p.Reps))
	if p.DurationSeconds != nil {
		field("d", strconv.Itoa(*p.DurationSeconds))
	} else {
		field("d", absent)
	}
	field("dist", optFloat(p.Distance, absent))
	field("cal", optFloat(p.Calories, absent))
	field("wu", strconv.FormatBool(p.IsWarmup))
	if p.Notes != nil {
		field("n", "+"+*p.Notes)
	} else {
		field("n", absent)
	}
	field("u", string(p.WeightUnit))
	field("t", strconv.FormatInt(createdAt.UnixMilli(), 10))

	sum := blake2b.Sum256([]byte(b.String()))
	return prefix + hex.EncodeToString(sum[:])
}

func optFloat(v *float64, absent string) string {
	if v == nil {
		return absent
	}
	return "+" + strconv.FormatFloat(*v, 'g', -1, 64)
}
