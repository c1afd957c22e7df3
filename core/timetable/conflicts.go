package timetable

import (
	"fmt"
	"sort"
)

type ConflictKind string

// Conflict kinds
const (
	ConflictTeacher ConflictKind = "teacher"
	ConflictRoom    ConflictKind = "room"
)

// Conflict is a stored entry that shares a Slot and either the teacher or the room of a candidate.
type Conflict struct {
	Kind    ConflictKind `json:"kind"`
	Message string       `json:"message"`
	Entry   Entry        `json:"entry"`
}

func newConflict(kind ConflictKind, candidate, existing Entry) Conflict {
	var msg string
	switch kind {
	case ConflictTeacher:
		msg = fmt.Sprintf("teacher %d is already booked on %s (entry %d, class %d)", candidate.TeacherID, existing.Slot(), existing.ID, existing.ClassID)
	case ConflictRoom:
		msg = fmt.Sprintf("room %d is already booked on %s (entry %d, class %d)", candidate.RoomID, existing.Slot(), existing.ID, existing.ClassID)
	}
	return Conflict{Kind: kind, Message: msg, Entry: existing}
}

// Detect scans entries for teacher and room double-bookings of candidate's Slot.
// Entries whose ID is in excludeIDs are skipped, so an entry does not conflict with its own prior state.
// Teacher and room checks are independent: one existing entry may yield both.
func Detect(candidate Entry, entries []Entry, excludeIDs ...int) []Conflict {
	var conflicts []Conflict
	for _, e := range entries {
		if e.Day != candidate.Day || e.Period != candidate.Period || isExcluded(e.ID, excludeIDs) {
			continue
		}
		if e.TeacherID == candidate.TeacherID {
			conflicts = append(conflicts, newConflict(ConflictTeacher, candidate, e))
		}
		if e.RoomID == candidate.RoomID {
			conflicts = append(conflicts, newConflict(ConflictRoom, candidate, e))
		}
	}
	return conflicts
}

func isExcluded(id int, excludeIDs []int) bool {
	for _, excl := range excludeIDs {
		if id == excl {
			return true
		}
	}
	return false
}

// Clash is a pair of stored entries that already violate teacher or room exclusivity.
type Clash struct {
	Kind   ConflictKind `json:"kind"`
	Slot   Slot         `json:"slot"`
	First  Entry        `json:"first"`
	Second Entry        `json:"second"`
}

// Audit returns every clash among entries, ordered by the ID of the later entry of each pair.
// Stores only reach such a state through copies, which skip conflict detection.
func Audit(entries []Entry) []Clash {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var clashes []Clash
	bySlot := make(map[Slot][]Entry)
	for _, e := range sorted {
		slot := e.Slot()
		for _, prev := range bySlot[slot] {
			if prev.TeacherID == e.TeacherID {
				clashes = append(clashes, Clash{Kind: ConflictTeacher, Slot: slot, First: prev, Second: e})
			}
			if prev.RoomID == e.RoomID {
				clashes = append(clashes, Clash{Kind: ConflictRoom, Slot: slot, First: prev, Second: e})
			}
		}
		bySlot[slot] = append(bySlot[slot], e)
	}
	return clashes
}
