package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/timetable"
)

const entryColumns = "id, class_id, teacher_id, room_id, day, period"

type timetableRepository struct {
	db *sqlx.DB
}

func NewTimetableRepository(db *sqlx.DB) timetable.Repository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) InsertEntry(ctx context.Context, e timetable.Entry) (timetable.Entry, error) {
	q := repo.db.Rebind(
		"INSERT INTO timetable_entry (class_id, teacher_id, room_id, day, period) VALUES (?, ?, ?, ?, ?) RETURNING " + entryColumns,
	)
	var inserted timetable.Entry
	if err := repo.db.GetContext(ctx, &inserted, q, e.ClassID, e.TeacherID, e.RoomID, e.Day, e.Period); err != nil {
		return timetable.Entry{}, errors.Wrap(err, "inserting timetable entry")
	}
	return inserted, nil
}

func (repo *timetableRepository) ReplaceEntry(ctx context.Context, e timetable.Entry) (timetable.Entry, error) {
	q := repo.db.Rebind(
		"UPDATE timetable_entry SET class_id = ?, teacher_id = ?, room_id = ?, day = ?, period = ? WHERE id = ? RETURNING " + entryColumns,
	)
	var replaced timetable.Entry
	err := repo.db.GetContext(ctx, &replaced, q, e.ClassID, e.TeacherID, e.RoomID, e.Day, e.Period, e.ID)
	if err == sql.ErrNoRows {
		return timetable.Entry{}, timetable.ErrNotFound
	}
	if err != nil {
		return timetable.Entry{}, errors.Wrapf(err, "replacing timetable entry %d", e.ID)
	}
	return replaced, nil
}

func (repo *timetableRepository) RemoveEntry(ctx context.Context, id int) (timetable.Entry, error) {
	q := repo.db.Rebind("DELETE FROM timetable_entry WHERE id = ? RETURNING " + entryColumns)
	var removed timetable.Entry
	err := repo.db.GetContext(ctx, &removed, q, id)
	if err == sql.ErrNoRows {
		return timetable.Entry{}, timetable.ErrNotFound
	}
	if err != nil {
		return timetable.Entry{}, errors.Wrapf(err, "removing timetable entry %d", id)
	}
	return removed, nil
}

func (repo *timetableRepository) GetEntry(ctx context.Context, id int) (timetable.Entry, error) {
	q := repo.db.Rebind("SELECT " + entryColumns + " FROM timetable_entry WHERE id = ?")
	var e timetable.Entry
	err := repo.db.GetContext(ctx, &e, q, id)
	if err == sql.ErrNoRows {
		return timetable.Entry{}, timetable.ErrNotFound
	}
	if err != nil {
		return timetable.Entry{}, errors.Wrapf(err, "getting timetable entry %d", id)
	}
	return e, nil
}

func (repo *timetableRepository) QueryEntries(ctx context.Context, filter timetable.QueryFilter) ([]timetable.Entry, error) {
	where, args := filterClause(filter)
	q := repo.db.Rebind("SELECT " + entryColumns + " FROM timetable_entry" + where + " ORDER BY id")

	entries := make([]timetable.Entry, 0)
	if err := repo.db.SelectContext(ctx, &entries, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying timetable entries")
	}
	return entries, nil
}

// filterClause builds the WHERE clause (AND of the set fields) with `?` bindvars.
func filterClause(filter timetable.QueryFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if filter.ClassID != 0 {
		add("class_id = ?", filter.ClassID)
	}
	if filter.TeacherID != 0 {
		add("teacher_id = ?", filter.TeacherID)
	}
	if filter.RoomID != 0 {
		add("room_id = ?", filter.RoomID)
	}
	if filter.Day != "" {
		add("day = ?", filter.Day)
	}
	if filter.Period != 0 {
		add("period = ?", filter.Period)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
