package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	sheetsvc "github.com/trezcool/ratiba/services/spreadsheet"
)

type (
	CopyRequest struct {
		FromClassID int `json:"from_class_id" validate:"required,gt=0"`
		ToClassID   int `json:"to_class_id" validate:"required,gt=0"`
	}

	ConflictsRequest struct {
		timetable.NewEntry
		ExcludeID int `json:"exclude_id" validate:"gte=0"`
	}
)

func (cr *CopyRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(cr)
}

func (cr *ConflictsRequest) Validate(validate *validator.Validate) error {
	if err := cr.NewEntry.Validate(validate); err != nil {
		return err
	}
	return validate.Struct(cr)
}

type timetableApi struct {
	svc        *timetable.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerTimetableAPI(g *echo.Group, svc *timetable.Service, validate *validator.Validate, translator ut.Translator) {
	api := timetableApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	tg := g.Group("/timetables")
	tg.GET("", api.query)
	tg.POST("", api.create)
	tg.POST("/bulk", api.bulkCreate)
	tg.POST("/copy", api.copy)
	tg.POST("/conflicts", api.findConflicts)
	tg.GET("/audit", api.audit)
	tg.GET("/export", api.export)
	tg.GET("/days", api.queryDays)

	// detail endpoints
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *timetableApi) query(ctx echo.Context) error {
	filter := new(timetable.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []timetable.Entry{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	entries, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying timetable entries")
	}
	if entries == nil {
		entries = []timetable.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *timetableApi) export(ctx echo.Context) error {
	filter := new(timetable.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return core.NewValidationError(errors.New("invalid filter"))
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	entries, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying timetable entries")
	}

	var buf bytes.Buffer
	if err = sheetsvc.WriteEntries(&buf, entries); err != nil {
		return errors.Wrap(err, "exporting timetable entries")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="timetable.xlsx"`)
	return ctx.Blob(http.StatusOK, sheetsvc.ContentType, buf.Bytes())
}

func (api *timetableApi) create(ctx echo.Context) error {
	var data timetable.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating timetable entry")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *timetableApi) bulkCreate(ctx echo.Context) error {
	var data []timetable.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to []NewEntry")
	}
	if len(data) == 0 {
		return core.NewValidationError(errors.New("at least one entry is required"))
	}

	var fldErrs []core.FieldError
	for i := range data {
		err := data[i].Validate(api.validate)
		if err == nil {
			continue
		}
		vErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for fld, msg := range core.TranslateErrors(vErrs, api.translator) {
			fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("%d.%s", i, fld), Error: msg})
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}

	created, err := api.svc.BulkCreate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "bulk creating timetable entries")
	}
	return ctx.JSON(http.StatusCreated, created)
}

func (api *timetableApi) copy(ctx echo.Context) error {
	var data CopyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CopyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	copies, err := api.svc.CopyTimetable(ctx.Request().Context(), data.FromClassID, data.ToClassID)
	if err != nil {
		return errors.Wrap(err, "copying timetable")
	}
	return ctx.JSON(http.StatusCreated, copies)
}

func (api *timetableApi) findConflicts(ctx echo.Context) error {
	var data ConflictsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConflictsRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	var exclude []int
	if data.ExcludeID > 0 {
		exclude = append(exclude, data.ExcludeID)
	}
	conflicts, err := api.svc.FindConflicts(ctx.Request().Context(), data.NewEntry, exclude...)
	if err != nil {
		return errors.Wrap(err, "finding conflicts")
	}
	if conflicts == nil {
		conflicts = []timetable.Conflict{}
	}
	return ctx.JSON(http.StatusOK, conflicts)
}

func (api *timetableApi) audit(ctx echo.Context) error {
	clashes, err := api.svc.Audit(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "auditing timetable")
	}
	if clashes == nil {
		clashes = []timetable.Clash{}
	}
	return ctx.JSON(http.StatusOK, clashes)
}

func (api *timetableApi) queryDays(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, timetable.Days)
}

func (api *timetableApi) retrieve(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting timetable entry")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *timetableApi) update(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}

	var data timetable.UpdateEntry
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEntry")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating timetable entry")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *timetableApi) destroy(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Delete(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "deleting timetable entry")
	}
	return ctx.JSON(http.StatusOK, e)
}
