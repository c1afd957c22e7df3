package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/ratiba/core/timetable"
)

type timetableRepository struct {
	db *timetableTable
}

func NewTimetableRepository(db *DB) timetable.Repository {
	return &timetableRepository{db: db.timetable}
}

func (repo *timetableRepository) query(filter timetable.QueryFilter) []timetable.Entry {
	entries := make([]timetable.Entry, 0, len(repo.db.t))
	for _, e := range repo.db.t {
		if filter.Match(*e) {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

func (repo *timetableRepository) InsertEntry(_ context.Context, e timetable.Entry) (timetable.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.pk++
	e.ID = repo.db.pk
	repo.db.t[e.ID] = &e
	return e, nil
}

func (repo *timetableRepository) ReplaceEntry(_ context.Context, e timetable.Entry) (timetable.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t[e.ID]; !ok {
		return timetable.Entry{}, timetable.ErrNotFound
	}
	repo.db.t[e.ID] = &e
	return e, nil
}

func (repo *timetableRepository) RemoveEntry(_ context.Context, id int) (timetable.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.t[id]
	if !ok {
		return timetable.Entry{}, timetable.ErrNotFound
	}
	delete(repo.db.t, id)
	return *e, nil
}

func (repo *timetableRepository) GetEntry(_ context.Context, id int) (timetable.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.t[id]; ok {
		return *e, nil
	}
	return timetable.Entry{}, timetable.ErrNotFound
}

func (repo *timetableRepository) QueryEntries(_ context.Context, filter timetable.QueryFilter) ([]timetable.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(filter), nil
}
