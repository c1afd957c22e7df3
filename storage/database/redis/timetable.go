package redisrepos

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/ratiba/core/timetable"
)

// timetableRepository stores each entry as a JSON string under <prefix>:timetable:entry:<id>.
// A sorted set scored by ID indexes the stored entries, and a counter hands out IDs.
type timetableRepository struct {
	rdb    *redis.Client
	prefix string
}

func NewTimetableRepository(rdb *redis.Client, keyPrefix string) timetable.Repository {
	return &timetableRepository{rdb: rdb, prefix: keyPrefix + ":timetable:"}
}

func (repo *timetableRepository) seqKey() string {
	return repo.prefix + "seq"
}

func (repo *timetableRepository) idsKey() string {
	return repo.prefix + "ids"
}

func (repo *timetableRepository) entryKey(id string) string {
	return repo.prefix + "entry:" + id
}

func decodeEntry(data string) (timetable.Entry, error) {
	var e timetable.Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return timetable.Entry{}, errors.Wrap(err, "decoding entry")
	}
	return e, nil
}

func (repo *timetableRepository) InsertEntry(ctx context.Context, e timetable.Entry) (timetable.Entry, error) {
	id, err := repo.rdb.Incr(ctx, repo.seqKey()).Result()
	if err != nil {
		return timetable.Entry{}, errors.Wrap(err, "allocating entry id")
	}
	e.ID = int(id)

	data, err := json.Marshal(e)
	if err != nil {
		return timetable.Entry{}, errors.Wrap(err, "encoding entry")
	}
	_, err = repo.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, repo.entryKey(strconv.Itoa(e.ID)), data, 0)
		pipe.ZAdd(ctx, repo.idsKey(), redis.Z{Score: float64(e.ID), Member: e.ID})
		return nil
	})
	if err != nil {
		return timetable.Entry{}, errors.Wrap(err, "inserting entry")
	}
	return e, nil
}

func (repo *timetableRepository) ReplaceEntry(ctx context.Context, e timetable.Entry) (timetable.Entry, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return timetable.Entry{}, errors.Wrap(err, "encoding entry")
	}
	ok, err := repo.rdb.SetXX(ctx, repo.entryKey(strconv.Itoa(e.ID)), data, 0).Result()
	if err != nil {
		return timetable.Entry{}, errors.Wrap(err, "replacing entry")
	}
	if !ok {
		return timetable.Entry{}, timetable.ErrNotFound
	}
	return e, nil
}

func (repo *timetableRepository) RemoveEntry(ctx context.Context, id int) (timetable.Entry, error) {
	key := repo.entryKey(strconv.Itoa(id))
	var get *redis.StringCmd
	_, err := repo.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, repo.idsKey(), id)
		return nil
	})
	if err == redis.Nil {
		return timetable.Entry{}, timetable.ErrNotFound
	}
	if err != nil {
		return timetable.Entry{}, errors.Wrap(err, "removing entry")
	}
	return decodeEntry(get.Val())
}

func (repo *timetableRepository) GetEntry(ctx context.Context, id int) (timetable.Entry, error) {
	data, err := repo.rdb.Get(ctx, repo.entryKey(strconv.Itoa(id))).Result()
	if err == redis.Nil {
		return timetable.Entry{}, timetable.ErrNotFound
	}
	if err != nil {
		return timetable.Entry{}, errors.Wrap(err, "getting entry")
	}
	return decodeEntry(data)
}

func (repo *timetableRepository) QueryEntries(ctx context.Context, filter timetable.QueryFilter) ([]timetable.Entry, error) {
	ids, err := repo.rdb.ZRange(ctx, repo.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing entry ids")
	}
	entries := make([]timetable.Entry, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, repo.entryKey(id))
	}
	vals, err := repo.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "getting entries")
	}

	for _, val := range vals {
		data, ok := val.(string)
		if !ok {
			continue // removed since the id listing
		}
		e, err := decodeEntry(data)
		if err != nil {
			return nil, err
		}
		if filter.Match(e) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
