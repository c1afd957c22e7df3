package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/timetable"
)

// RunRepositoryTests runs the behaviour every timetable.Repository must share.
// newRepo must return an empty repository.
func RunRepositoryTests(t *testing.T, newRepo func(t *testing.T) timetable.Repository) {
	ctx := context.Background()

	t.Run("insert assigns increasing ids", func(t *testing.T) {
		repo := newRepo(t)
		e1 := CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)
		e2 := CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1) // not checked by the store
		assert.Equal(t, timetable.Entry{ID: e1.ID, ClassID: 5, TeacherID: 1, RoomID: 10, Day: timetable.Monday, Period: 1}, e1)
		assert.Greater(t, e2.ID, e1.ID)

		got, err := repo.GetEntry(ctx, e2.ID)
		require.NoError(t, err)
		assert.Equal(t, e2, got)
	})

	t.Run("ids are never reused", func(t *testing.T) {
		repo := newRepo(t)
		CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)
		e2 := CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 2)
		_, err := repo.RemoveEntry(ctx, e2.ID)
		require.NoError(t, err)

		e3 := CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 2)
		assert.Greater(t, e3.ID, e2.ID)
	})

	t.Run("replace", func(t *testing.T) {
		repo := newRepo(t)
		e := CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)

		want := timetable.Entry{ID: e.ID, ClassID: 6, TeacherID: 2, RoomID: 20, Day: timetable.Friday, Period: 4}
		got, err := repo.ReplaceEntry(ctx, want)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		got, err = repo.GetEntry(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		_, err = repo.ReplaceEntry(ctx, timetable.Entry{ID: 99, ClassID: 6, TeacherID: 2, RoomID: 20, Day: timetable.Friday, Period: 4})
		assert.True(t, timetable.IsNotFound(err))
	})

	t.Run("remove", func(t *testing.T) {
		repo := newRepo(t)
		e := CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)

		removed, err := repo.RemoveEntry(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e, removed)

		_, err = repo.RemoveEntry(ctx, e.ID)
		assert.True(t, timetable.IsNotFound(err))
		_, err = repo.GetEntry(ctx, e.ID)
		assert.True(t, timetable.IsNotFound(err))
	})

	t.Run("query", func(t *testing.T) {
		repo := newRepo(t)
		e1 := CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)
		e2 := CreateEntry(t, repo, 6, 2, 20, timetable.Monday, 1)
		e3 := CreateEntry(t, repo, 5, 2, 10, timetable.Tuesday, 3)

		tests := []struct {
			name   string
			filter timetable.QueryFilter
			want   []timetable.Entry
		}{
			{name: "all", want: []timetable.Entry{e1, e2, e3}},
			{name: "class", filter: timetable.QueryFilter{ClassID: 5}, want: []timetable.Entry{e1, e3}},
			{name: "teacher", filter: timetable.QueryFilter{TeacherID: 2}, want: []timetable.Entry{e2, e3}},
			{name: "room", filter: timetable.QueryFilter{RoomID: 20}, want: []timetable.Entry{e2}},
			{name: "slot", filter: timetable.QueryFilter{Day: timetable.Monday, Period: 1}, want: []timetable.Entry{e1, e2}},
			{name: "no match", filter: timetable.QueryFilter{Day: timetable.Saturday}, want: []timetable.Entry{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.QueryEntries(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("query returns a snapshot", func(t *testing.T) {
		repo := newRepo(t)
		e := CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)

		entries, err := repo.QueryEntries(ctx, timetable.QueryFilter{})
		require.NoError(t, err)
		entries[0].TeacherID = 42

		got, err := repo.GetEntry(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	})
}
