package sheetsvc

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/ratiba/core/timetable"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	SheetName = "Timetable"
)

// Columns is the header row of an exported timetable. Imports accept the same names, in any order.
var Columns = []string{"id", "class_id", "teacher_id", "room_id", "day", "period"}

// WriteEntries writes entries as an XLSX workbook with a single sheet, one entry per row.
func WriteEntries(w io.Writer, entries []timetable.Entry) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	header := make([]interface{}, 0, len(Columns))
	for _, col := range Columns {
		header = append(header, col)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err = f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{e.ID, e.ClassID, e.TeacherID, e.RoomID, string(e.Day), e.Period}
		if err = f.SetSheetRow(SheetName, cell, &row); err != nil {
			return errors.Wrapf(err, "writing entry %d", e.ID)
		}
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}

// ReadRows returns the rows of the first sheet of the XLSX workbook read from r, header included.
// Trailing empty cells of a row are omitted.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}
	return rows, nil
}
