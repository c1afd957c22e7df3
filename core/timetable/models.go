package timetable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
)

// Day is one of the fixed set of school days.
type Day string

// Days
const (
	Monday    Day = "Mon"
	Tuesday   Day = "Tue"
	Wednesday Day = "Wed"
	Thursday  Day = "Thu"
	Friday    Day = "Fri"
	Saturday  Day = "Sat"
)

var (
	Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

	dayNames = map[string]Day{
		"mon": Monday, "monday": Monday,
		"tue": Tuesday, "tues": Tuesday, "tuesday": Tuesday,
		"wed": Wednesday, "wednesday": Wednesday,
		"thu": Thursday, "thur": Thursday, "thurs": Thursday, "thursday": Thursday,
		"fri": Friday, "friday": Friday,
		"sat": Saturday, "saturday": Saturday,
	}
)

// ParseDay accepts short or full day names, case-insensitively.
func ParseDay(s string) (Day, bool) {
	d, ok := dayNames[core.CleanString(s, true /* lower */)]
	return d, ok
}

func (d Day) IsValid() bool {
	return d.Index() >= 0
}

// Index returns the position of d within the week, or -1 if d is not a valid Day.
func (d Day) Index() int {
	for i, day := range Days {
		if d == day {
			return i
		}
	}
	return -1
}

// cleanDay normalises d to its canonical form when possible.
func cleanDay(d Day) Day {
	if parsed, ok := ParseDay(string(d)); ok {
		return parsed
	}
	return Day(core.CleanString(string(d)))
}

// Slot identifies a single teaching timeslot.
type Slot struct {
	Day    Day `json:"day"`
	Period int `json:"period"`
}

func (s Slot) String() string {
	return fmt.Sprintf("%s/%d", s.Day, s.Period)
}

// Entry is one scheduled assignment of a class, teacher and room to a Slot.
// ClassID, TeacherID and RoomID reference external entities and are not checked for existence.
type Entry struct {
	ID        int `json:"id" db:"id"`
	ClassID   int `json:"class_id" db:"class_id"`
	TeacherID int `json:"teacher_id" db:"teacher_id"`
	RoomID    int `json:"room_id" db:"room_id"`
	Day       Day `json:"day" db:"day"`
	Period    int `json:"period" db:"period"`
}

func (e Entry) Slot() Slot {
	return Slot{Day: e.Day, Period: e.Period}
}

// NewEntry contains information needed to allocate a new Entry.
type NewEntry struct {
	ClassID   int `json:"class_id" validate:"required,gt=0"`
	TeacherID int `json:"teacher_id" validate:"required,gt=0"`
	RoomID    int `json:"room_id" validate:"required,gt=0"`
	Day       Day `json:"day" validate:"required,weekday"`
	Period    int `json:"period" validate:"required,gt=0,maxperiod"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.Day = cleanDay(ne.Day)
	return validate.Struct(ne)
}

// toEntry builds the Entry to store, with the day in its canonical form.
func (ne NewEntry) toEntry(id int) Entry {
	return Entry{
		ID:        id,
		ClassID:   ne.ClassID,
		TeacherID: ne.TeacherID,
		RoomID:    ne.RoomID,
		Day:       cleanDay(ne.Day),
		Period:    ne.Period,
	}
}

// check reports the fields of e that can never be allocated, whatever the boundary validated.
// The upper period bound is configuration and stays with the validator.
func (e Entry) check() error {
	var flds []core.FieldError
	for _, id := range []struct {
		field string
		val   int
	}{{"class_id", e.ClassID}, {"teacher_id", e.TeacherID}, {"room_id", e.RoomID}} {
		if id.val <= 0 {
			flds = append(flds, core.FieldError{Field: id.field, Error: "must be greater than 0"})
		}
	}
	if !e.Day.IsValid() {
		flds = append(flds, core.FieldError{Field: "day", Error: weekdayText()})
	}
	if e.Period <= 0 {
		flds = append(flds, core.FieldError{Field: "period", Error: "must be greater than 0"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// UpdateEntry defines the full replacement of an existing Entry's fields. The ID is preserved.
type UpdateEntry NewEntry

func (ue *UpdateEntry) Validate(validate *validator.Validate) error {
	ue.Day = cleanDay(ue.Day)
	return validate.Struct(ue)
}

type QueryFilter struct {
	ClassID   int `query:"class_id"`
	TeacherID int `query:"teacher_id"`
	RoomID    int `query:"room_id"`
	Day       Day `query:"day"`
	Period    int `query:"period"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.ClassID == 0 && qf.TeacherID == 0 && qf.RoomID == 0 && qf.Day == "" && qf.Period == 0
}

func (qf *QueryFilter) Clean() {
	if qf.Day != "" {
		qf.Day = cleanDay(qf.Day)
	}
}

// Match applies AND operation on the set QueryFilter fields.
func (qf QueryFilter) Match(e Entry) bool {
	return (qf.ClassID == 0 || e.ClassID == qf.ClassID) &&
		(qf.TeacherID == 0 || e.TeacherID == qf.TeacherID) &&
		(qf.RoomID == 0 || e.RoomID == qf.RoomID) &&
		(qf.Day == "" || e.Day == qf.Day) &&
		(qf.Period == 0 || e.Period == qf.Period)
}

var orderingFields = map[string]func(a, b Entry) int{
	"id":         func(a, b Entry) int { return a.ID - b.ID },
	"class_id":   func(a, b Entry) int { return a.ClassID - b.ClassID },
	"teacher_id": func(a, b Entry) int { return a.TeacherID - b.TeacherID },
	"room_id":    func(a, b Entry) int { return a.RoomID - b.RoomID },
	"day":        func(a, b Entry) int { return a.Day.Index() - b.Day.Index() },
	"period":     func(a, b Entry) int { return a.Period - b.Period },
}

// SortEntries sorts entries in place by the given orderings. Unknown fields are ignored.
// Entries are ordered by ID when no ordering applies.
func SortEntries(entries []Entry, orderings []core.DBOrdering) {
	cmps := make([]func(a, b Entry) int, 0, len(orderings))
	for _, ord := range orderings {
		cmp, ok := orderingFields[strings.ToLower(ord.Field)]
		if !ok {
			continue
		}
		if !ord.Ascending {
			asc := cmp
			cmp = func(a, b Entry) int { return asc(b, a) }
		}
		cmps = append(cmps, cmp)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		for _, cmp := range cmps {
			if c := cmp(entries[i], entries[j]); c != 0 {
				return c < 0
			}
		}
		return entries[i].ID < entries[j].ID
	})
}
