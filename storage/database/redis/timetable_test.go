package redisrepos

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/timetable"
	"github.com/trezcool/ratiba/tests"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	conf := testutil.TestConfig()
	conf.Redis.Addr = srv.Addr()

	rdb, err := Open(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, srv
}

func TestTimetableRepository(t *testing.T) {
	testutil.RunRepositoryTests(t, func(t *testing.T) timetable.Repository {
		rdb, _ := newClient(t)
		return NewTimetableRepository(rdb, "test")
	})
}

func TestTimetableRepository_keys(t *testing.T) {
	rdb, srv := newClient(t)
	repo := NewTimetableRepository(rdb, "school1")
	other := NewTimetableRepository(rdb, "school2")

	e := testutil.CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)
	assert.True(t, srv.Exists("school1:timetable:entry:1"))
	assert.Equal(t, "1", mustGet(t, srv, "school1:timetable:seq"))

	members, err := srv.ZMembers("school1:timetable:ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)

	// prefixes isolate stores sharing a server
	entries, err := other.QueryEntries(context.Background(), timetable.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = other.GetEntry(context.Background(), e.ID)
	assert.True(t, timetable.IsNotFound(err))
}

func TestTimetableRepository_corruptEntry(t *testing.T) {
	rdb, srv := newClient(t)
	repo := NewTimetableRepository(rdb, "test")

	e := testutil.CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)
	require.NoError(t, srv.Set("test:timetable:entry:1", "{lol"))

	_, err := repo.GetEntry(context.Background(), e.ID)
	assert.Error(t, err)
	_, err = repo.QueryEntries(context.Background(), timetable.QueryFilter{})
	assert.Error(t, err)
}

func TestOpen_unreachable(t *testing.T) {
	conf := testutil.TestConfig()
	conf.Redis.Addr = "127.0.0.1:1"
	_, err := Open(context.Background(), conf)
	assert.Error(t, err)
}

func mustGet(t *testing.T, srv *miniredis.Miniredis, key string) string {
	t.Helper()
	val, err := srv.Get(key)
	require.NoError(t, err)
	return val
}
