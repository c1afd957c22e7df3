package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	sheetsvc "github.com/trezcool/ratiba/services/spreadsheet"
	"github.com/trezcool/ratiba/tests"
)

type entryData struct {
	ClassID   int    `json:"class_id,omitempty"`
	TeacherID int    `json:"teacher_id,omitempty"`
	RoomID    int    `json:"room_id,omitempty"`
	Day       string `json:"day,omitempty"`
	Period    int    `json:"period,omitempty"`
	ExcludeID int    `json:"exclude_id,omitempty"`
}

func Test_timetableApi_home(t *testing.T) {
	app, _ := newTestServer(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Ratiba API!", rec.Body.String())
}

func Test_timetableApi_query(t *testing.T) {
	app, repo := newTestServer(t)

	path := func(params map[string]string) string {
		v := make(url.Values)
		for k, val := range params {
			v.Add(k, val)
		}
		return "/v1/timetables?" + v.Encode()
	}

	e1 := testutil.CreateEntry(t, repo, 5, 1, 10, timetable.Wednesday, 1)
	e2 := testutil.CreateEntry(t, repo, 5, 2, 11, timetable.Monday, 2)
	e3 := testutil.CreateEntry(t, repo, 6, 1, 12, timetable.Monday, 1)

	runHTTPTests(t, app, []httpTest{
		{name: "all", path: "/v1/timetables", wantCode: http.StatusOK, wantData: marchallList(t, e1, e2, e3)},
		{name: "trailing slash", path: "/v1/timetables/", wantCode: http.StatusOK, wantData: marchallList(t, e1, e2, e3)},
		{name: "class_id", path: path(map[string]string{"class_id": "5"}), wantCode: http.StatusOK, wantData: marchallList(t, e1, e2)},
		{name: "teacher_id", path: path(map[string]string{"teacher_id": "1"}), wantCode: http.StatusOK, wantData: marchallList(t, e1, e3)},
		{name: "day (full name)", path: path(map[string]string{"day": "monday"}), wantCode: http.StatusOK, wantData: marchallList(t, e2, e3)},
		{name: "day & period", path: path(map[string]string{"day": "Mon", "period": "1"}), wantCode: http.StatusOK, wantData: marchallList(t, e3)},
		{name: "unknown room", path: path(map[string]string{"room_id": "99"}), wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "invalid filter", path: path(map[string]string{"class_id": "lol"}), wantCode: http.StatusOK, wantData: marchallList(t)},
		// ordering
		{name: "order by day,period", path: path(map[string]string{"ordering": "day,period"}), wantCode: http.StatusOK, wantData: marchallList(t, e3, e2, e1)},
		{name: "order by -teacher_id,-id", path: path(map[string]string{"ordering": "-teacher_id,-id"}), wantCode: http.StatusOK, wantData: marchallList(t, e2, e3, e1)},
	})
}

func Test_timetableApi_create(t *testing.T) {
	app, _ := newTestServer(t)

	first := timetable.Entry{ID: 1, ClassID: 5, TeacherID: 1, RoomID: 10, Day: timetable.Monday, Period: 1}
	teacherConflict := timetable.Conflict{
		Kind:    timetable.ConflictTeacher,
		Message: "teacher 1 is already booked on Mon/1 (entry 1, class 5)",
		Entry:   first,
	}
	roomConflict := timetable.Conflict{
		Kind:    timetable.ConflictRoom,
		Message: "room 10 is already booked on Mon/1 (entry 1, class 5)",
		Entry:   first,
	}

	runHTTPTests(t, app, []httpTest{
		{
			name: "empty body", method: http.MethodPost, path: "/v1/timetables",
			body:     marchallObj(t, entryData{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"class_id":   "this field is required",
				"teacher_id": "this field is required",
				"room_id":    "this field is required",
				"day":        "this field is required",
				"period":     "this field is required",
			}),
		},
		{
			name: "invalid day & period", method: http.MethodPost, path: "/v1/timetables",
			body:     marchallObj(t, entryData{ClassID: 5, TeacherID: 1, RoomID: 10, Day: "Sun", Period: 9}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"day":    "must be one of: Mon, Tue, Wed, Thu, Fri, Sat",
				"period": "must not be greater than 8",
			}),
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/v1/timetables",
			body:     []byte(`{"class_id": "five"`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "unexpected EOF"}),
		},
		{
			name: "created", method: http.MethodPost, path: "/v1/timetables",
			body:     marchallObj(t, entryData{ClassID: 5, TeacherID: 1, RoomID: 10, Day: "monday", Period: 1}),
			wantCode: http.StatusCreated,
			wantData: marchallObj(t, first),
		},
		{
			name: "teacher conflict", method: http.MethodPost, path: "/v1/timetables",
			body:     marchallObj(t, entryData{ClassID: 6, TeacherID: 1, RoomID: 99, Day: "Mon", Period: 1}),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, conflictResponse{Error: "timetable conflict", Conflicts: []timetable.Conflict{teacherConflict}}),
		},
		{
			name: "room conflict", method: http.MethodPost, path: "/v1/timetables",
			body:     marchallObj(t, entryData{ClassID: 6, TeacherID: 2, RoomID: 10, Day: "Mon", Period: 1}),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, conflictResponse{Error: "timetable conflict", Conflicts: []timetable.Conflict{roomConflict}}),
		},
		{
			name: "both conflicts", method: http.MethodPost, path: "/v1/timetables",
			body:     marchallObj(t, entryData{ClassID: 6, TeacherID: 1, RoomID: 10, Day: "Mon", Period: 1}),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, conflictResponse{Error: "timetable conflict", Conflicts: []timetable.Conflict{teacherConflict, roomConflict}}),
		},
	})
}

func Test_timetableApi_retrieveUpdateDestroy(t *testing.T) {
	app, repo := newTestServer(t)

	e1 := testutil.CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)
	e2 := testutil.CreateEntry(t, repo, 6, 2, 20, timetable.Monday, 2)
	notFound := marchallObj(t, httpErr{Error: "timetable entry not found"})

	moved := timetable.Entry{ID: e2.ID, ClassID: 6, TeacherID: 2, RoomID: 20, Day: timetable.Tuesday, Period: 2}

	runHTTPTests(t, app, []httpTest{
		{name: "retrieve", path: "/v1/timetables/1", wantCode: http.StatusOK, wantData: marchallObj(t, e1)},
		{name: "retrieve unknown", path: "/v1/timetables/99", wantCode: http.StatusNotFound, wantData: notFound},
		{name: "retrieve invalid id", path: "/v1/timetables/lol", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{
			name: "update unchanged", method: http.MethodPut, path: "/v1/timetables/1",
			body:     marchallObj(t, entryData{ClassID: 5, TeacherID: 1, RoomID: 10, Day: "Mon", Period: 1}),
			wantCode: http.StatusOK, wantData: marchallObj(t, e1),
		},
		{
			name: "update unknown", method: http.MethodPut, path: "/v1/timetables/99",
			body:     marchallObj(t, entryData{ClassID: 5, TeacherID: 1, RoomID: 10, Day: "Mon", Period: 1}),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "update invalid", method: http.MethodPut, path: "/v1/timetables/2",
			body:     marchallObj(t, entryData{ClassID: 6, TeacherID: 2, RoomID: 20, Day: "Mon"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"period": "this field is required"}),
		},
		{
			name: "update conflict", method: http.MethodPut, path: "/v1/timetables/2",
			body:     marchallObj(t, entryData{ClassID: 6, TeacherID: 2, RoomID: 10, Day: "Mon", Period: 1}),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, conflictResponse{Error: "timetable conflict", Conflicts: []timetable.Conflict{{
				Kind:    timetable.ConflictRoom,
				Message: "room 10 is already booked on Mon/1 (entry 1, class 5)",
				Entry:   e1,
			}}}),
		},
		{
			name: "update", method: http.MethodPut, path: "/v1/timetables/2",
			body:     marchallObj(t, entryData{ClassID: 6, TeacherID: 2, RoomID: 20, Day: "tue", Period: 2}),
			wantCode: http.StatusOK, wantData: marchallObj(t, moved),
		},
		{name: "destroy", method: http.MethodDelete, path: "/v1/timetables/2", wantCode: http.StatusOK, wantData: marchallObj(t, moved)},
		{name: "destroy again", method: http.MethodDelete, path: "/v1/timetables/2", wantCode: http.StatusNotFound, wantData: notFound},
		{name: "remaining", path: "/v1/timetables", wantCode: http.StatusOK, wantData: marchallList(t, e1)},
	})
}

func Test_timetableApi_bulkCreate(t *testing.T) {
	app, repo := newTestServer(t)

	valid := entryData{ClassID: 5, TeacherID: 1, RoomID: 10, Day: "Mon", Period: 1}
	conflicting := entryData{ClassID: 6, TeacherID: 1, RoomID: 11, Day: "Mon", Period: 1}

	created := timetable.Entry{ID: 1, ClassID: 5, TeacherID: 1, RoomID: 10, Day: timetable.Monday, Period: 1}
	runHTTPTests(t, app, []httpTest{
		{
			name: "empty", method: http.MethodPost, path: "/v1/timetables/bulk", body: []byte(`[]`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "at least one entry is required"}),
		},
		{
			name: "invalid items", method: http.MethodPost, path: "/v1/timetables/bulk",
			body:     marchallList(t, valid, entryData{ClassID: 6, TeacherID: 2, RoomID: 11, Day: "Sun", Period: 1}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"1.day": "must be one of: Mon, Tue, Wed, Thu, Fri, Sat"}),
		},
		{
			name: "partial commit", method: http.MethodPost, path: "/v1/timetables/bulk",
			body:     marchallList(t, valid, conflicting),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, bulkErrorResponse{
				Error:   "1 of 2 timetable entries conflicted",
				Created: []timetable.Entry{created},
				Errors: []timetable.BulkItemError{{
					Index: 1,
					Entry: timetable.NewEntry{ClassID: 6, TeacherID: 1, RoomID: 11, Day: timetable.Monday, Period: 1},
					Conflicts: []timetable.Conflict{{
						Kind:    timetable.ConflictTeacher,
						Message: "teacher 1 is already booked on Mon/1 (entry 1, class 5)",
						Entry:   created,
					}},
				}},
			}),
		},
		{
			name: "all created", method: http.MethodPost, path: "/v1/timetables/bulk",
			body: marchallList(t,
				entryData{ClassID: 5, TeacherID: 1, RoomID: 10, Day: "Tue", Period: 1},
				entryData{ClassID: 6, TeacherID: 2, RoomID: 11, Day: "Tue", Period: 1},
			),
			wantCode: http.StatusCreated,
			wantData: marchallList(t,
				timetable.Entry{ID: 2, ClassID: 5, TeacherID: 1, RoomID: 10, Day: timetable.Tuesday, Period: 1},
				timetable.Entry{ID: 3, ClassID: 6, TeacherID: 2, RoomID: 11, Day: timetable.Tuesday, Period: 1},
			),
		},
	})

	stored, err := repo.QueryEntries(context.Background(), timetable.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func Test_timetableApi_copy(t *testing.T) {
	app, repo := newTestServer(t)

	src := testutil.CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)
	testutil.CreateEntry(t, repo, 6, 2, 20, timetable.Monday, 2)

	runHTTPTests(t, app, []httpTest{
		{
			name: "invalid", method: http.MethodPost, path: "/v1/timetables/copy", body: marchallObj(t, map[string]int{"from_class_id": 5}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"to_class_id": "this field is required"}),
		},
		{
			name: "unknown source", method: http.MethodPost, path: "/v1/timetables/copy",
			body:     marchallObj(t, map[string]int{"from_class_id": 9, "to_class_id": 7}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "class has no timetable entries"}),
		},
		{
			name: "copied", method: http.MethodPost, path: "/v1/timetables/copy",
			body:     marchallObj(t, map[string]int{"from_class_id": 5, "to_class_id": 7}),
			wantCode: http.StatusCreated,
			wantData: marchallList(t, timetable.Entry{ID: 3, ClassID: 7, TeacherID: src.TeacherID, RoomID: src.RoomID, Day: src.Day, Period: src.Period}),
		},
		{
			name: "audit shows the unchecked copy", path: "/v1/timetables/audit",
			wantCode: http.StatusOK,
			wantData: marchallList(t,
				timetable.Clash{
					Kind: timetable.ConflictTeacher, Slot: src.Slot(), First: src,
					Second: timetable.Entry{ID: 3, ClassID: 7, TeacherID: 1, RoomID: 10, Day: timetable.Monday, Period: 1},
				},
				timetable.Clash{
					Kind: timetable.ConflictRoom, Slot: src.Slot(), First: src,
					Second: timetable.Entry{ID: 3, ClassID: 7, TeacherID: 1, RoomID: 10, Day: timetable.Monday, Period: 1},
				},
			),
		},
	})
}

func Test_timetableApi_findConflicts(t *testing.T) {
	app, repo := newTestServer(t)
	e := testutil.CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)

	runHTTPTests(t, app, []httpTest{
		{
			name: "none", method: http.MethodPost, path: "/v1/timetables/conflicts",
			body:     marchallObj(t, entryData{ClassID: 6, TeacherID: 2, RoomID: 20, Day: "Mon", Period: 1}),
			wantCode: http.StatusOK, wantData: marchallList(t),
		},
		{
			name: "self", method: http.MethodPost, path: "/v1/timetables/conflicts",
			body:     marchallObj(t, entryData{ClassID: 5, TeacherID: 1, RoomID: 10, Day: "Mon", Period: 1}),
			wantCode: http.StatusOK,
			wantData: marchallList(t,
				timetable.Conflict{Kind: timetable.ConflictTeacher, Message: "teacher 1 is already booked on Mon/1 (entry 1, class 5)", Entry: e},
				timetable.Conflict{Kind: timetable.ConflictRoom, Message: "room 10 is already booked on Mon/1 (entry 1, class 5)", Entry: e},
			),
		},
		{
			name: "self excluded", method: http.MethodPost, path: "/v1/timetables/conflicts",
			body:     marchallObj(t, entryData{ClassID: 5, TeacherID: 1, RoomID: 10, Day: "Mon", Period: 1, ExcludeID: e.ID}),
			wantCode: http.StatusOK, wantData: marchallList(t),
		},
		{
			name: "invalid", method: http.MethodPost, path: "/v1/timetables/conflicts",
			body:     marchallObj(t, entryData{ClassID: 5, TeacherID: 1, RoomID: 10, Period: 1}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"day": "this field is required"}),
		},
	})
}

func Test_timetableApi_queryDays(t *testing.T) {
	app, _ := newTestServer(t)
	runHTTPTests(t, app, []httpTest{
		{name: "days", path: "/v1/timetables/days", wantCode: http.StatusOK, wantData: marchallList(t, "Mon", "Tue", "Wed", "Thu", "Fri", "Sat")},
	})
}

// failingRepo fails every read with err.
type failingRepo struct {
	timetable.Repository
	err error
}

func (r failingRepo) QueryEntries(context.Context, timetable.QueryFilter) ([]timetable.Entry, error) {
	return nil, r.err
}

func Test_timetableApi_export(t *testing.T) {
	app, repo := newTestServer(t)

	testutil.CreateEntry(t, repo, 5, 1, 10, timetable.Monday, 1)
	testutil.CreateEntry(t, repo, 6, 2, 11, timetable.Monday, 1)
	testutil.CreateEntry(t, repo, 5, 2, 11, timetable.Friday, 4)

	tests := []struct {
		name     string
		path     string
		wantRows [][]string
	}{
		{
			name: "all",
			path: "/v1/timetables/export",
			wantRows: [][]string{
				sheetsvc.Columns,
				{"1", "5", "1", "10", "Mon", "1"},
				{"2", "6", "2", "11", "Mon", "1"},
				{"3", "5", "2", "11", "Fri", "4"},
			},
		},
		{
			name: "filtered and ordered",
			path: "/v1/timetables/export?class_id=5&ordering=-day",
			wantRows: [][]string{
				sheetsvc.Columns,
				{"3", "5", "2", "11", "Fri", "4"},
				{"1", "5", "1", "10", "Mon", "1"},
			},
		},
		{
			name:     "no match",
			path:     "/v1/timetables/export?room_id=99",
			wantRows: [][]string{sheetsvc.Columns},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, sheetsvc.ContentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "timetable.xlsx")

			rows, err := sheetsvc.ReadRows(rec.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, rows)
		})
	}

	runHTTPTests(t, app, []httpTest{
		{
			name: "invalid filter", path: "/v1/timetables/export?class_id=lol",
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid filter"}),
		},
	})
}

func Test_appHTTPErrorHandler_serverErrors(t *testing.T) {
	internalErr := marchallObj(t, httpErr{Error: http.StatusText(http.StatusInternalServerError)})

	t.Run("internal error", func(t *testing.T) {
		app, _ := newTestServer(t, failingRepo{err: errors.New("disk on fire")})
		runHTTPTests(t, app, []httpTest{
			{name: "query", path: "/v1/timetables", wantCode: http.StatusInternalServerError, wantData: internalErr},
		})

		select {
		case sig := <-app.ShutdownSignal():
			t.Errorf("unexpected shutdown signal: %v", sig)
		default:
		}
	})

	t.Run("shutdown error", func(t *testing.T) {
		app, _ := newTestServer(t, failingRepo{err: core.NewShutdownError("integrity lost")})
		runHTTPTests(t, app, []httpTest{
			{name: "query", path: "/v1/timetables", wantCode: http.StatusInternalServerError, wantData: internalErr},
		})

		select {
		case <-app.ShutdownSignal():
		default:
			t.Error("expected a shutdown signal")
		}
	})
}
