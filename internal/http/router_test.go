package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"standup-formstack/internal/models"
	"standup-formstack/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRooms struct {
	configs map[string]*models.RoomFormConfig
	ids     []string
}

func (f *fakeRooms) Get(ctx context.Context, roomID string) (*models.RoomFormConfig, error) {
	if cfg, ok := f.configs[roomID]; ok {
		return cfg, nil
	}
	return nil, models.ErrNotConfigured
}

func (f *fakeRooms) List(ctx context.Context) ([]string, error) { return f.ids, nil }

type fakeJobs []scheduler.Job

func (f fakeJobs) Jobs() []scheduler.Job { return f }

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestRouter(pingErr error) http.Handler {
	rooms := &fakeRooms{
		ids: []string{"C1", "C2"},
		configs: map[string]*models.RoomFormConfig{
			"C1": {
				RoomID: "C1", FormID: "123", APIBaseURL: "https://api/form/123", Timezone: "America/New_York",
				Fields: models.FieldMap{
					models.RoleDate: "1", models.RoleYesterday: "2", models.RoleToday: "3",
					models.RoleBlocker: "4", models.RoleFirstName: "5",
				},
				ReportCron: "30 9 * * 1-5", ReminderCron: "0 9 * * 1-5",
			},
		},
	}
	jobs := fakeJobs{
		{RoomID: "C1", Kind: scheduler.KindReminder, Spec: "0 9 * * 1-5", State: scheduler.StateRunning},
		{RoomID: "C1", Kind: scheduler.KindReport, Spec: "30 9 * * 1-5", State: scheduler.StateRunning},
	}
	return NewRouter(NewHandler(rooms, rooms, jobs, fakePinger{err: pingErr}, zap.NewNop()))
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newTestRouter(errors.New("dial tcp: refused")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body Result[any]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ResultError, body.Code)
}

func TestListRooms_SkipsUnconfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body Result[[]roomView]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ResultSuccess, body.Code)
	require.Len(t, body.Result, 1)
	room := body.Result[0]
	assert.Equal(t, "C1", room.RoomID)
	assert.True(t, room.Complete)
	assert.Len(t, room.Jobs, 2)
}

func TestGetRoom(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/C1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body Result[roomView]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "123", body.Result.FormID)
	assert.Equal(t, "30 9 * * 1-5", body.Result.ReportCron)

	rec = httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/C9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
