package roomconfig

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"standup-formstack/internal/models"
	"standup-formstack/internal/store"
)

// fakeKVStore 仅用于单元测试（内存 KV，可注入读写错误）
type fakeKVStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
	sets   int
	// failSetAfter > 0 时，累计写入达到该次数后的 Set 全部失败
	failSetAfter int
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string]string)}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	if f.failSetAfter > 0 && f.sets >= f.failSetAfter {
		return errors.New("write failed")
	}
	f.sets++
	f.data[key] = value
	return nil
}

func (f *fakeKVStore) Remove(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKVStore) Ping(ctx context.Context) error { return nil }

func (f *fakeKVStore) keysWithPrefix(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys
}

// fakeFormClient 计数的 Formstack 表单客户端
type fakeFormClient struct {
	form  *models.Form
	err   error
	calls int32
	delay time.Duration
}

func (f *fakeFormClient) GetForm(ctx context.Context, formID string) (*models.Form, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.form, nil
}

func (f *fakeFormClient) FormAPIURL(formID string) string {
	return "https://api.test/v2/form/" + formID
}

func (f *fakeFormClient) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

func standupForm() *models.Form {
	return &models.Form{
		URL:      "https://team.formstack.com/forms/standup",
		Timezone: "America/Chicago",
		Fields: []models.FormField{
			{ID: "101", Label: "Date of report"},
			{ID: "102", Label: "First Name"},
			{ID: "103", Label: "Last Name"},
			{ID: "104", Label: "What did you do Yesterday"},
			{ID: "105", Label: "What will you do Today"},
			{ID: "106", Label: "Any Blockers/Impediments"},
			{ID: "107", Label: "Favorite color"},
		},
	}
}
