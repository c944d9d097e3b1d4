package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"standup-formstack/internal/models"
	"standup-formstack/internal/scheduler"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RoomSource 房间配置读取
type RoomSource interface {
	Get(ctx context.Context, roomID string) (*models.RoomFormConfig, error)
}

// RoomLister 活跃房间列表
type RoomLister interface {
	List(ctx context.Context) ([]string, error)
}

// JobLister 定时任务快照
type JobLister interface {
	Jobs() []scheduler.Job
}

// Pinger 存储健康检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler 运维接口
type Handler struct {
	rooms    RoomSource
	registry RoomLister
	jobs     JobLister
	store    Pinger
	logger   *zap.Logger
}

func NewHandler(rooms RoomSource, registry RoomLister, jobs JobLister, store Pinger, logger *zap.Logger) *Handler {
	return &Handler{rooms: rooms, registry: registry, jobs: jobs, store: store, logger: logger}
}

// roomView 房间配置与定时任务
type roomView struct {
	RoomID       string             `json:"room_id"`
	FormID       string             `json:"form_id"`
	FormURL      string             `json:"form_url"`
	Timezone     string             `json:"timezone"`
	Randomize    bool               `json:"randomize"`
	Complete     bool               `json:"complete"`
	Missing      []models.FieldRole `json:"missing,omitempty"`
	ReportCron   string             `json:"report_cron,omitempty"`
	ReminderCron string             `json:"reminder_cron,omitempty"`
	Jobs         []scheduler.Job    `json:"jobs"`
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz 存储可用时返回 200
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail("store not ready"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"store": "ok"}))
}

// ListRooms GET /rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	ids, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list rooms", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list rooms"))
		return
	}

	jobs := h.jobsByRoom()
	out := make([]roomView, 0, len(ids))
	for _, id := range ids {
		cfg, err := h.rooms.Get(r.Context(), id)
		if err != nil {
			h.logger.Warn("Skipping room", zap.String("room_id", id), zap.Error(err))
			continue
		}
		out = append(out, newRoomView(cfg, jobs[id]))
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

// GetRoom GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cfg, err := h.rooms.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotConfigured) {
			writeJSON(w, http.StatusNotFound, Fail("room not configured"))
			return
		}
		h.logger.Error("Failed to get room", zap.String("room_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to get room"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(newRoomView(cfg, h.jobsByRoom()[id])))
}

func (h *Handler) jobsByRoom() map[string][]scheduler.Job {
	out := make(map[string][]scheduler.Job)
	for _, j := range h.jobs.Jobs() {
		out[j.RoomID] = append(out[j.RoomID], j)
	}
	return out
}

func newRoomView(cfg *models.RoomFormConfig, jobs []scheduler.Job) roomView {
	if jobs == nil {
		jobs = []scheduler.Job{}
	}
	return roomView{
		RoomID:       cfg.RoomID,
		FormID:       cfg.FormID,
		FormURL:      cfg.FormURL,
		Timezone:     cfg.Timezone,
		Randomize:    cfg.Randomize,
		Complete:     cfg.Complete(),
		Missing:      cfg.Fields.Missing(),
		ReportCron:   cfg.ReportCron,
		ReminderCron: cfg.ReminderCron,
		Jobs:         jobs,
	}
}
