package timetable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

type (
	Repository interface {
		// InsertEntry assigns the next unused ID to e and stores it. IDs are never reused.
		InsertEntry(ctx context.Context, e Entry) (Entry, error)
		// ReplaceEntry overwrites all fields of the entry with e.ID. Returns ErrNotFound if absent.
		ReplaceEntry(ctx context.Context, e Entry) (Entry, error)
		// RemoveEntry deletes and returns the entry. Returns ErrNotFound if absent.
		RemoveEntry(ctx context.Context, id int) (Entry, error)
		GetEntry(ctx context.Context, id int) (Entry, error)
		// QueryEntries returns a snapshot of the entries matching filter, ordered by ID.
		// An empty filter matches every entry.
		QueryEntries(ctx context.Context, filter QueryFilter) ([]Entry, error)
	}

	Options struct {
		// Delay is waited before each operation, to simulate a slow backend.
		Delay   time.Duration
		Metrics core.MetricsRecorder
	}

	// Service runs the allocation operations. Mutations are serialised, so the conflict check
	// and the commit of one operation never interleave with another mutation.
	Service struct {
		repo    Repository
		delay   time.Duration
		metrics core.MetricsRecorder
		mu      sync.Mutex
	}
)

func NewService(repo Repository, opts ...Options) *Service {
	svc := &Service{repo: repo, metrics: core.NopRecorder{}}
	if len(opts) > 0 {
		svc.delay = opts[0].Delay
		if opts[0].Metrics != nil {
			svc.metrics = opts[0].Metrics
		}
	}
	return svc
}

func (svc *Service) observe(op string, start time.Time, err *error) {
	svc.metrics.Observe(op, *err == nil, time.Since(start))
}

func (svc *Service) wait(ctx context.Context) error {
	if svc.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(svc.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (svc *Service) findConflicts(ctx context.Context, candidate Entry, excludeIDs ...int) ([]Conflict, error) {
	sameSlot, err := svc.repo.QueryEntries(ctx, QueryFilter{Day: candidate.Day, Period: candidate.Period})
	if err != nil {
		return nil, errors.Wrap(err, "querying slot entries")
	}
	return Detect(candidate, sameSlot, excludeIDs...), nil
}

// FindConflicts reports the conflicts committing ne would cause. excludeID, when given, is skipped.
func (svc *Service) FindConflicts(ctx context.Context, ne NewEntry, excludeID ...int) (conflicts []Conflict, err error) {
	defer svc.observe("find_conflicts", time.Now(), &err)
	if err = svc.wait(ctx); err != nil {
		return nil, err
	}
	candidate := ne.toEntry(0)
	if err = candidate.check(); err != nil {
		return nil, err
	}
	return svc.findConflicts(ctx, candidate, excludeID...)
}

// Create commits ne if it does not conflict with any stored entry.
func (svc *Service) Create(ctx context.Context, ne NewEntry) (e Entry, err error) {
	defer svc.observe("create", time.Now(), &err)
	if err = svc.wait(ctx); err != nil {
		return Entry{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.create(ctx, ne)
}

func (svc *Service) create(ctx context.Context, ne NewEntry) (Entry, error) {
	candidate := ne.toEntry(0)
	if err := candidate.check(); err != nil {
		return Entry{}, err
	}
	conflicts, err := svc.findConflicts(ctx, candidate)
	if err != nil {
		return Entry{}, err
	}
	if len(conflicts) > 0 {
		return Entry{}, &ConflictError{Conflicts: conflicts}
	}
	return svc.repo.InsertEntry(ctx, candidate)
}

// Update replaces all fields of the entry with the given ID. The entry's prior state is not a conflict.
func (svc *Service) Update(ctx context.Context, id int, ue UpdateEntry) (e Entry, err error) {
	defer svc.observe("update", time.Now(), &err)
	if err = svc.wait(ctx); err != nil {
		return Entry{}, err
	}

	candidate := NewEntry(ue).toEntry(id)
	if err = candidate.check(); err != nil {
		return Entry{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, err = svc.repo.GetEntry(ctx, id); err != nil {
		return Entry{}, err
	}
	conflicts, err := svc.findConflicts(ctx, candidate, id)
	if err != nil {
		return Entry{}, err
	}
	if len(conflicts) > 0 {
		return Entry{}, &ConflictError{Conflicts: conflicts}
	}
	return svc.repo.ReplaceEntry(ctx, candidate)
}

// Delete removes the entry and returns it.
func (svc *Service) Delete(ctx context.Context, id int) (e Entry, err error) {
	defer svc.observe("delete", time.Now(), &err)
	if err = svc.wait(ctx); err != nil {
		return Entry{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.repo.RemoveEntry(ctx, id)
}

// BulkCreate checks and commits the entries in order. Entries committed earlier in the batch are visible
// to later checks. Conflicting entries are skipped, and a *BulkError carrying both the created entries
// and the rejected ones is returned. Committed entries are never rolled back.
// Nothing is committed when any entry is invalid; the fields are then reported as "<index>.<field>".
func (svc *Service) BulkCreate(ctx context.Context, nes []NewEntry) (created []Entry, err error) {
	defer svc.observe("bulk_create", time.Now(), &err)
	if err = svc.wait(ctx); err != nil {
		return nil, err
	}

	var fldErrs []core.FieldError
	for i, ne := range nes {
		var vErr *core.ValidationError
		if errors.As(ne.toEntry(0).check(), &vErr) {
			for _, fld := range vErr.Fields {
				fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("%d.%s", i, fld.Field), Error: fld.Error})
			}
		}
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	created = make([]Entry, 0, len(nes))
	var itemErrs []BulkItemError
	for i, ne := range nes {
		e, cErr := svc.create(ctx, ne)
		if cErr != nil {
			var conflictErr *ConflictError
			if !errors.As(cErr, &conflictErr) {
				return created, errors.Wrapf(cErr, "creating entry %d", i)
			}
			itemErrs = append(itemErrs, BulkItemError{Index: i, Entry: ne, Conflicts: conflictErr.Conflicts})
			continue
		}
		created = append(created, e)
	}

	if len(itemErrs) > 0 {
		return created, &BulkError{Created: created, Errors: itemErrs}
	}
	return created, nil
}

// CopyTimetable duplicates every entry of class fromID into class toID, with fresh IDs.
// The copies are not checked for conflicts. When the store fails partway, the copies made so far
// stay committed and are returned along with the error.
func (svc *Service) CopyTimetable(ctx context.Context, fromID, toID int) (copies []Entry, err error) {
	defer svc.observe("copy", time.Now(), &err)
	if err = svc.wait(ctx); err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	source, err := svc.repo.QueryEntries(ctx, QueryFilter{ClassID: fromID})
	if err != nil {
		return nil, errors.Wrap(err, "querying source timetable")
	}
	if len(source) == 0 {
		return nil, ErrClassNotFound
	}

	copies = make([]Entry, 0, len(source))
	for _, src := range source {
		cp := src
		cp.ID = 0
		cp.ClassID = toID
		e, err := svc.repo.InsertEntry(ctx, cp)
		if err != nil {
			return copies, errors.Wrapf(err, "copying entry %d", src.ID)
		}
		copies = append(copies, e)
	}
	return copies, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (e Entry, err error) {
	defer svc.observe("get", time.Now(), &err)
	if err = svc.wait(ctx); err != nil {
		return Entry{}, err
	}
	return svc.repo.GetEntry(ctx, id)
}

// Query returns the entries matching filter, sorted by orderings (by ID if none).
func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) (entries []Entry, err error) {
	defer svc.observe("query", time.Now(), &err)
	if err = svc.wait(ctx); err != nil {
		return nil, err
	}
	filter.Clean()
	entries, err = svc.repo.QueryEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	SortEntries(entries, orderings)
	return entries, nil
}

// Audit returns the clashes already present in the store.
func (svc *Service) Audit(ctx context.Context) (clashes []Clash, err error) {
	defer svc.observe("audit", time.Now(), &err)
	if err = svc.wait(ctx); err != nil {
		return nil, err
	}
	entries, err := svc.repo.QueryEntries(ctx, QueryFilter{})
	if err != nil {
		return nil, err
	}
	return Audit(entries), nil
}
