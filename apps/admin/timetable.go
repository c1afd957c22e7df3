package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	sheetsvc "github.com/trezcool/ratiba/services/spreadsheet"
)

var (
	errNoDatabase = errors.New("migrations need a SQL database engine (postgres or sqlite)")

	importColumns = []string{"class_id", "teacher_id", "room_id", "day", "period"}
)

// validateEntry runs v.Validate and turns validation errors into a *core.ValidationError with prefixed field names.
func (cli *commandLine) validateEntry(prefix string, v interface {
	Validate(*validator.Validate) error
}) error {
	err := v.Validate(cli.validate)
	if err == nil {
		return nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fldErrs := core.TranslateErrors(vErrs, cli.translator)
	names := make([]string, 0, len(fldErrs))
	for name := range fldErrs {
		names = append(names, name)
	}
	sort.Strings(names)

	flds := make([]core.FieldError, 0, len(names))
	for _, name := range names {
		flds = append(flds, core.FieldError{Field: prefix + name, Error: fldErrs[name]})
	}
	return core.NewValidationError(nil, flds...)
}

// readRecords reads the rows of a CSV file, or of the first sheet of an XLSX workbook, header included.
func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening import file")
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return sheetsvc.ReadRows(f)
	}

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading CSV")
	}
	return records, nil
}

// parseEntries turns records into entries. The header row is required; columns may come in any order
// and unknown columns (such as an exported id) are ignored.
func parseEntries(records [][]string) ([]timetable.NewEntry, error) {
	if len(records) == 0 {
		return nil, core.NewValidationError(errors.New("empty file"))
	}

	idx := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		idx[core.CleanString(col, true /* lower */)] = i
	}
	var missing []core.FieldError
	for _, col := range importColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, core.FieldError{Field: "header", Error: "missing column " + col})
		}
	}
	if len(missing) > 0 {
		return nil, core.NewValidationError(nil, missing...)
	}

	cell := func(record []string, col string) string {
		if i := idx[col]; i < len(record) {
			return core.CleanString(record[i])
		}
		return ""
	}

	entries := make([]timetable.NewEntry, 0, len(records)-1)
	var fldErrs []core.FieldError
	for n, record := range records[1:] {
		line := n + 2
		ints := make(map[string]int, 4)
		for _, col := range []string{"class_id", "teacher_id", "room_id", "period"} {
			val, err := strconv.Atoi(cell(record, col))
			if err != nil {
				fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("line %d: %s", line, col), Error: "must be an integer"})
				continue
			}
			ints[col] = val
		}
		entries = append(entries, timetable.NewEntry{
			ClassID:   ints["class_id"],
			TeacherID: ints["teacher_id"],
			RoomID:    ints["room_id"],
			Day:       timetable.Day(cell(record, "day")),
			Period:    ints["period"],
		})
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	return entries, nil
}

func (cli *commandLine) importFile(ctx context.Context, path string) error {
	records, err := readRecords(path)
	if err != nil {
		return err
	}
	entries, err := parseEntries(records)
	if err != nil {
		return err
	}

	var fldErrs []core.FieldError
	for i := range entries {
		if err = cli.validateEntry(fmt.Sprintf("line %d: ", i+2), &entries[i]); err != nil {
			vErr, ok := err.(*core.ValidationError)
			if !ok {
				return err
			}
			fldErrs = append(fldErrs, vErr.Fields...)
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}

	created, err := cli.svc.BulkCreate(ctx, entries)
	_, _ = fmt.Fprintf(cli.out, "%d of %d entries created\n", len(created), len(entries))
	if bulkErr, ok := errors.Cause(err).(*timetable.BulkError); ok {
		for _, itemErr := range bulkErr.Errors {
			for _, c := range itemErr.Conflicts {
				_, _ = fmt.Fprintf(cli.out, "line %d: %s\n", itemErr.Index+2, c.Message)
			}
		}
	}
	return err
}

func (cli *commandLine) exportFile(ctx context.Context, path string, filter timetable.QueryFilter, ordering string) error {
	entries, err := cli.svc.Query(ctx, filter, parseOrdering(ordering)...)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	if err = sheetsvc.WriteEntries(f, entries); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "closing export file")
	}
	_, _ = fmt.Fprintf(cli.out, "%d entries exported to %s\n", len(entries), path)
	return nil
}

func (cli *commandLine) copy(ctx context.Context, from, to int) error {
	copies, err := cli.svc.CopyTimetable(ctx, from, to)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d entries copied from class %d to class %d\n", len(copies), from, to)
	return cli.printEntries(copies)
}

// parseOrdering parses comma separated field names, prefixed with '-' for descending order.
func parseOrdering(ordering string) []core.DBOrdering {
	var orderings []core.DBOrdering
	for _, field := range strings.Split(ordering, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		orderings = append(orderings, core.DBOrdering{Field: strings.TrimPrefix(field, "-"), Ascending: !descending})
	}
	return orderings
}

func (cli *commandLine) list(ctx context.Context, filter timetable.QueryFilter, ordering string) error {
	entries, err := cli.svc.Query(ctx, filter, parseOrdering(ordering)...)
	if err != nil {
		return err
	}
	return cli.printEntries(entries)
}

func (cli *commandLine) check(ctx context.Context, data timetable.NewEntry, excludeID int) error {
	if err := cli.validateEntry("", &data); err != nil {
		return err
	}
	var exclude []int
	if excludeID > 0 {
		exclude = append(exclude, excludeID)
	}

	conflicts, err := cli.svc.FindConflicts(ctx, data, exclude...)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &timetable.ConflictError{Conflicts: conflicts}
	}
	_, _ = fmt.Fprintf(cli.out, "no conflicts on %s\n", timetable.Slot{Day: data.Day, Period: data.Period})
	return nil
}

func (cli *commandLine) audit(ctx context.Context) error {
	clashes, err := cli.svc.Audit(ctx)
	if err != nil {
		return err
	}
	if len(clashes) == 0 {
		_, _ = fmt.Fprintln(cli.out, "no clashes")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SLOT\tKIND\tFIRST\tSECOND")
	for _, c := range clashes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d (class %d)\t%d (class %d)\n", c.Slot, c.Kind, c.First.ID, c.First.ClassID, c.Second.ID, c.Second.ClassID)
	}
	return w.Flush()
}

func (cli *commandLine) printEntries(entries []timetable.Entry) error {
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCLASS\tTEACHER\tROOM\tDAY\tPERIOD")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%d\n", e.ID, e.ClassID, e.TeacherID, e.RoomID, e.Day, e.Period)
	}
	return w.Flush()
}
