package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/ratiba/core/timetable"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db         *sqlx.DB
	svc        *timetable.Service
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                          - run a goose migration command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  import -file FILE                               - bulk allocate entries from a CSV or XLSX file (class_id,teacher_id,room_id,day,period)")
	_, _ = fmt.Fprintln(cli.out, "  export -file FILE [FILTERS]                     - write timetable entries to an XLSX file")
	_, _ = fmt.Fprintln(cli.out, "  copy -from CLASS -to CLASS                      - copy a class timetable to another class")
	_, _ = fmt.Fprintln(cli.out, "  list [FILTERS]                                  - list timetable entries")
	_, _ = fmt.Fprintln(cli.out, "  check -class N -teacher N -room N -day D -period N [-exclude ID] - report the conflicts of an entry")
	_, _ = fmt.Fprintln(cli.out, "  audit                                           - report teacher and room clashes already stored")
	_, _ = fmt.Fprintln(cli.out, "")
	_, _ = fmt.Fprintln(cli.out, "FILTERS: [-class N] [-teacher N] [-room N] [-day D] [-period N] [-ordering day,-period]")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

type filterFlags struct {
	filter   timetable.QueryFilter
	day      string
	ordering string
}

func (ff *filterFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&ff.filter.ClassID, "class", 0, "Filter by class ID.")
	fs.IntVar(&ff.filter.TeacherID, "teacher", 0, "Filter by teacher ID.")
	fs.IntVar(&ff.filter.RoomID, "room", 0, "Filter by room ID.")
	fs.StringVar(&ff.day, "day", "", "Filter by day.")
	fs.IntVar(&ff.filter.Period, "period", 0, "Filter by period.")
	fs.StringVar(&ff.ordering, "ordering", "", "Comma separated fields to order by, prefixed with '-' for descending order.")
}

func (ff *filterFlags) queryFilter() timetable.QueryFilter {
	filter := ff.filter
	filter.Day = timetable.Day(ff.day)
	return filter
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := cli.newFlagSet("import")
	importFile := importCmd.String("file", "", "The CSV or XLSX file to import.")

	exportCmd := cli.newFlagSet("export")
	exportFile := exportCmd.String("file", "", "The XLSX file to write.")
	var exportFilter filterFlags
	exportFilter.register(exportCmd)

	copyCmd := cli.newFlagSet("copy")
	copyFrom := copyCmd.Int("from", 0, "The source class ID.")
	copyTo := copyCmd.Int("to", 0, "The destination class ID.")

	listCmd := cli.newFlagSet("list")
	var listFilter filterFlags
	listFilter.register(listCmd)

	checkCmd := cli.newFlagSet("check")
	var checkData timetable.NewEntry
	checkCmd.IntVar(&checkData.ClassID, "class", 0, "The class ID.")
	checkCmd.IntVar(&checkData.TeacherID, "teacher", 0, "The teacher ID.")
	checkCmd.IntVar(&checkData.RoomID, "room", 0, "The room ID.")
	checkDay := checkCmd.String("day", "", "The day.")
	checkCmd.IntVar(&checkData.Period, "period", 0, "The period.")
	checkExclude := checkCmd.Int("exclude", 0, "The ID of an entry to ignore (when moving it).")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "import":
		if err := parseFlags(importCmd, args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importFile(ctx, *importFile)
	case "export":
		if err := parseFlags(exportCmd, args[2:]); err != nil {
			return err
		}
		if *exportFile == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportFile(ctx, *exportFile, exportFilter.queryFilter(), exportFilter.ordering)
	case "copy":
		if err := parseFlags(copyCmd, args[2:]); err != nil {
			return err
		}
		if *copyFrom <= 0 || *copyTo <= 0 {
			copyCmd.Usage()
			return errHelp
		}
		return cli.copy(ctx, *copyFrom, *copyTo)
	case "list":
		if err := parseFlags(listCmd, args[2:]); err != nil {
			return err
		}
		return cli.list(ctx, listFilter.queryFilter(), listFilter.ordering)
	case "check":
		if err := parseFlags(checkCmd, args[2:]); err != nil {
			return err
		}
		checkData.Day = timetable.Day(*checkDay)
		return cli.check(ctx, checkData, *checkExclude)
	case "audit":
		return cli.audit(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}
