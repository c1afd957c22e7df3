package inmemdb

import (
	"sync"

	"github.com/trezcool/ratiba/core/timetable"
)

type (
	DB struct {
		timetable *timetableTable
	}

	timetableTable struct {
		t     map[int]*timetable.Entry
		pk    int
		mutex sync.RWMutex
	}
)

// Open returns an empty store. Each DB owns its tables and primary key counters.
func Open() *DB {
	return &DB{
		timetable: &timetableTable{t: make(map[int]*timetable.Entry)},
	}
}
