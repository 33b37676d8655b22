// Package memory is an in-process SetLogRepository for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/errs"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/model"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/repository"
)

type clientKey struct{ user, sessionExercise, clientLog uuid.UUID }

type indexKey struct {
	sessionExercise uuid.UUID
	setIndex        int
}

// SetLogRepo keeps sets in maps guarded by one mutex. It enforces the same
// uniqueness rules as the set_logs table.
type SetLogRepo struct {
	mu       sync.Mutex
	byClient map[clientKey]model.SetLog
	byIndex  map[indexKey]uuid.UUID
	maxIndex map[uuid.UUID]int
	now      func() time.Time
}

var _ repository.SetLogRepository = (*SetLogRepo)(nil)

// NewSetLogRepo returns an empty repository.
func NewSetLogRepo() *SetLogRepo {
	return &SetLogRepo{
		byClient: make(map[clientKey]model.SetLog),
		byIndex:  make(map[indexKey]uuid.UUID),
		maxIndex: make(map[uuid.UUID]int),
		now:      time.Now,
	}
}

func (r *SetLogRepo) FindByClientLogID(_ context.Context, userID, sessionExerciseID, clientLogID uuid.UUID) (*model.SetLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byClient[clientKey{userID, sessionExerciseID, clientLogID}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &s, nil
}

func (r *SetLogRepo) MaxSetIndex(_ context.Context, sessionExerciseID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.maxIndex[sessionExerciseID]; ok {
		return v, nil
	}
	return -1, nil
}

func (r *SetLogRepo) Insert(_ context.Context, s *model.SetLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ck := clientKey{s.UserID, s.SessionExerciseID, s.ClientLogID}
	ik := indexKey{s.SessionExerciseID, s.SetIndex}
	if _, dup := r.byClient[ck]; dup {
		return errs.ErrAlreadyExists
	}
	if _, taken := r.byIndex[ik]; taken {
		return errs.ErrSequenceTaken
	}
	s.CreatedAt = r.now().UTC()
	r.byClient[ck] = *s
	r.byIndex[ik] = s.ID
	if cur, ok := r.maxIndex[s.SessionExerciseID]; !ok || s.SetIndex > cur {
		r.maxIndex[s.SessionExerciseID] = s.SetIndex
	}
	return nil
}

func (r *SetLogRepo) ListBySessionExercise(_ context.Context, userID, sessionExerciseID uuid.UUID) ([]model.SetLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SetLog
	for k, s := range r.byClient {
		if k.sessionExercise == sessionExerciseID && k.user == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SetIndex < out[j].SetIndex })
	return out, nil
}
