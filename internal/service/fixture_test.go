package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"standup-formstack/internal/chat"
	"standup-formstack/internal/config"
	"standup-formstack/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

const (
	testRoom    = "C1"
	testFormURL = "https://acme.formstack.com/forms/standup"
	testToday   = "Jan 08, 2019"
)

// 2019-01-08 10:00 America/New_York
var fixedNow = time.Date(2019, time.January, 8, 15, 0, 0, 0, time.UTC)

// mockPlatform 记录发出的消息
type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) Run(ctx context.Context, handler chat.Handler) error {
	args := m.Called(ctx, handler)
	return args.Error(0)
}

func (m *mockPlatform) PostMessage(ctx context.Context, roomID, text string) error {
	args := m.Called(ctx, roomID, text)
	return args.Error(0)
}

// fakeFormstack 模拟 Formstack v2 API
type fakeFormstack struct {
	srv *httptest.Server

	mu          sync.Mutex
	submissions []map[string]string
	failSubs    bool
	formCalls   int
	subCalls    int
	minTime     string
}

var standupFields = []map[string]interface{}{
	{"id": 101, "label": "Date"},
	{"id": 102, "label": "What did you do yesterday?"},
	{"id": 103, "label": "What will you do today?"},
	{"id": 104, "label": "Any impediments?"},
	{"id": 105, "label": "First Name"},
	{"id": 106, "label": "Last Name"},
	{"id": 107, "label": "Comments"},
}

func newFakeFormstack(t *testing.T) *fakeFormstack {
	f := &fakeFormstack{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeFormstack) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Query().Get("oauth_token") != "tok" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","error":"Invalid token"}`))
		return
	}

	switch r.URL.Path {
	case "/api/v2/form/123.json":
		f.formCalls++
		writeJSON(w, map[string]interface{}{
			"url":      testFormURL,
			"timezone": "America/New_York",
			"fields":   standupFields,
		})
	case "/api/v2/form/777.json":
		f.formCalls++
		writeJSON(w, map[string]interface{}{
			"url":    testFormURL,
			"fields": standupFields[:3],
		})
	case "/api/v2/form/500.json":
		f.formCalls++
		w.WriteHeader(http.StatusInternalServerError)
	case "/api/v2/form/123/submission.json":
		f.subCalls++
		f.minTime = r.URL.Query().Get("min_time")
		if f.failSubs {
			writeJSON(w, map[string]interface{}{"status": "error", "error": "Rate limited"})
			return
		}
		subs := make([]map[string]interface{}, 0, len(f.submissions))
		for i, s := range f.submissions {
			data := map[string]interface{}{}
			for id, v := range s {
				data[id] = map[string]string{"field": id, "value": v}
			}
			subs = append(subs, map[string]interface{}{"id": strconv.Itoa(i + 1), "data": data})
		}
		writeJSON(w, map[string]interface{}{"total": len(subs), "pages": 1, "submissions": subs})
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":"error","error":"The form was not found"}`))
	}
}

func (f *fakeFormstack) setSubmissions(subs ...map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = subs
}

func (f *fakeFormstack) calls() (form, subs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.formCalls, f.subCalls
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func standupSubmission(date, first, last, yday, tday, blocker string) map[string]string {
	return map[string]string{
		"101": date, "102": yday, "103": tday, "104": blocker, "105": first, "106": last,
	}
}

type fixture struct {
	t        *testing.T
	svc      *StandupService
	platform *mockPlatform
	api      *fakeFormstack
	redis    *miniredis.Miniredis
	kv       *flakyKV
	seen     int
}

// flakyKV 可让 Remove 单独失败
type flakyKV struct {
	store.KV

	mu        sync.Mutex
	removeErr error
}

func (k *flakyKV) failRemove(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.removeErr = err
}

func (k *flakyKV) Remove(ctx context.Context, keys ...string) error {
	k.mu.Lock()
	err := k.removeErr
	k.mu.Unlock()
	if err != nil {
		return err
	}
	return k.KV.Remove(ctx, keys...)
}

type fixtureOption func(*config.Config)

func withToken(token string) fixtureOption {
	return func(c *config.Config) { c.Formstack.Token = token }
}

func withHear() fixtureOption {
	return func(c *config.Config) { c.Formstack.Hear = true }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	return buildFixture(t, miniredis.RunT(t), newFakeFormstack(t), opts...)
}

// newFixtureSharing 与 other 共用 Redis 与 Formstack，模拟进程重启
func newFixtureSharing(t *testing.T, other *fixture, opts ...fixtureOption) *fixture {
	t.Helper()
	return buildFixture(t, other.redis, other.api, opts...)
}

func buildFixture(t *testing.T, mr *miniredis.Miniredis, api *fakeFormstack, opts ...fixtureOption) *fixture {
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{BotName: "hubot"}
	cfg.Formstack = config.FormstackConfig{
		Token:          "tok",
		APIBase:        api.srv.URL + "/api/v2",
		LookbackDays:   5,
		Timezone:       "America/New_York",
		HTTPTimeout:    2 * time.Second,
		YesterdayLabel: "Yesterday",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	platform := &mockPlatform{}
	platform.On("PostMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	kv := &flakyKV{KV: store.NewRedisKV(rdb)}
	svc := NewStandupService(cfg, kv, platform, zap.NewNop())
	svc.fetcher.WithClock(func() time.Time { return fixedNow })
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	return &fixture{t: t, svc: svc, platform: platform, api: api, redis: mr, kv: kv}
}

// say 以用户身份在房间发消息
func (f *fixture) say(text string) {
	f.svc.HandleMessage(context.Background(), chat.Message{RoomID: testRoom, User: "ann", Text: text})
}

// take 返回上次调用以来发到房间的消息
func (f *fixture) take() []string {
	var out []string
	calls := f.platform.Calls
	for _, c := range calls[f.seen:] {
		if c.Method == "PostMessage" && c.Arguments.String(1) == testRoom {
			out = append(out, c.Arguments.String(2))
		}
	}
	f.seen = len(calls)
	return out
}

// linkForm 完成一次不带时间的 setup 并清空消息
func (f *fixture) linkForm() {
	f.say("hubot standup setup 123")
	f.take()
}
