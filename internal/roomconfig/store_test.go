package roomconfig

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"standup-formstack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedRoom(kv *fakeKVStore, roomID string) {
	kv.data["standup:room:"+roomID+":form_id"] = "42"
	kv.data["standup:room:"+roomID+":form_url"] = "https://team.formstack.com/forms/standup"
	kv.data["standup:room:"+roomID+":timezone"] = "America/Chicago"
	kv.data["standup:room:"+roomID+":field:date"] = "101"
	kv.data["standup:room:"+roomID+":field:first_name"] = "102"
	kv.data["standup:room:"+roomID+":field:yesterday"] = "104"
	kv.data["standup:room:"+roomID+":field:today"] = "105"
	kv.data["standup:room:"+roomID+":field:blocker"] = "106"
}

func TestGet_NotConfigured(t *testing.T) {
	s := NewStore(newFakeKVStore(), &fakeFormClient{}, "UTC", zap.NewNop())

	_, err := s.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}

func TestGet_ReadsPersistedFields(t *testing.T) {
	kv := newFakeKVStore()
	seedRoom(kv, "dev")
	kv.data["standup:room:dev:randomize"] = "true"
	kv.data["standup:room:dev:report_cron"] = "0 9 * * 1-5"
	s := NewStore(kv, &fakeFormClient{}, "UTC", zap.NewNop())

	cfg, err := s.Get(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, "42", cfg.FormID)
	assert.Equal(t, "https://api.test/v2/form/42", cfg.APIBaseURL)
	assert.True(t, cfg.Randomize)
	assert.Equal(t, "0 9 * * 1-5", cfg.ReportCron)
	assert.Empty(t, cfg.Fields[models.RoleLastName])
	assert.True(t, cfg.Complete())
}

func TestEnsureFresh_NoUpstreamCallWhenComplete(t *testing.T) {
	kv := newFakeKVStore()
	seedRoom(kv, "dev")
	client := &fakeFormClient{form: standupForm()}
	s := NewStore(kv, client, "UTC", zap.NewNop())

	cfg, err := s.EnsureFresh(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, "42", cfg.FormID)
	assert.Equal(t, 0, client.Calls())
	assert.Equal(t, 0, kv.sets)
}

func TestEnsureFresh_RefreshesIncompleteConfig(t *testing.T) {
	kv := newFakeKVStore()
	seedRoom(kv, "dev")
	delete(kv.data, "standup:room:dev:field:blocker")
	kv.data["standup:room:dev:randomize"] = "true"
	client := &fakeFormClient{form: standupForm()}
	s := NewStore(kv, client, "UTC", zap.NewNop())

	cfg, err := s.EnsureFresh(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, 1, client.Calls())
	assert.Equal(t, "106", cfg.Fields[models.RoleBlocker])
	assert.Equal(t, "103", cfg.Fields[models.RoleLastName])
	assert.True(t, cfg.Randomize, "randomize flag survives a refresh")
	assert.Equal(t, "106", kv.data["standup:room:dev:field:blocker"])
}

func TestEnsureFresh_NotConfigured(t *testing.T) {
	client := &fakeFormClient{form: standupForm()}
	s := NewStore(newFakeKVStore(), client, "UTC", zap.NewNop())

	_, err := s.EnsureFresh(context.Background(), "dev")
	assert.ErrorIs(t, err, models.ErrNotConfigured)
	assert.Equal(t, 0, client.Calls())
}

func TestEnsureFresh_ReadFailureDegradesToResolve(t *testing.T) {
	kv := newFakeKVStore()
	seedRoom(kv, "dev")
	client := &fakeFormClient{form: standupForm()}
	s := NewStore(kv, client, "UTC", zap.NewNop())

	_, err := s.Get(context.Background(), "dev")
	require.NoError(t, err)

	kv.getErr = errors.New("redis: connection refused")
	kv.setErr = errors.New("redis: connection refused")

	cfg, err := s.EnsureFresh(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, "42", cfg.FormID)
	assert.Equal(t, 1, client.Calls())
}

func TestEnsureFresh_ReadFailureWithoutCache(t *testing.T) {
	kv := newFakeKVStore()
	kv.getErr = errors.New("redis: connection refused")
	s := NewStore(kv, &fakeFormClient{form: standupForm()}, "UTC", zap.NewNop())

	_, err := s.EnsureFresh(context.Background(), "dev")
	var pe *models.PersistenceError
	assert.True(t, errors.As(err, &pe))
}

func TestEnsureFresh_ConcurrentRefreshIsDeduplicated(t *testing.T) {
	kv := newFakeKVStore()
	kv.data["standup:room:dev:form_id"] = "42"
	client := &fakeFormClient{form: standupForm(), delay: 50 * time.Millisecond}
	s := NewStore(kv, client, "UTC", zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := s.EnsureFresh(context.Background(), "dev")
			assert.NoError(t, err)
			assert.True(t, cfg.Complete())
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, client.Calls(), 2)
}

func TestRooms_AreIsolated(t *testing.T) {
	kv := newFakeKVStore()
	seedRoom(kv, "a")
	s := NewStore(kv, &fakeFormClient{form: standupForm()}, "UTC", zap.NewNop())

	require.NoError(t, s.SetRandomize(context.Background(), "b", true))
	cfgA, err := s.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, cfgA.Randomize)

	_, err = s.Get(context.Background(), "b")
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}

func TestSetCrons(t *testing.T) {
	kv := newFakeKVStore()
	seedRoom(kv, "dev")
	s := NewStore(kv, &fakeFormClient{}, "UTC", zap.NewNop())

	require.NoError(t, s.SetCrons(context.Background(), "dev", "0 9 * * 1-5", "30 8 * * 1-5"))
	cfg, err := s.Get(context.Background(), "dev")
	require.NoError(t, err)
	assert.True(t, cfg.HasSchedule())

	require.NoError(t, s.SetCrons(context.Background(), "dev", "", ""))
	_, ok := kv.data["standup:room:dev:report_cron"]
	assert.False(t, ok)
}

func TestRemove_DeletesEverything(t *testing.T) {
	kv := newFakeKVStore()
	client := &fakeFormClient{form: standupForm()}
	s := NewStore(kv, client, "UTC", zap.NewNop())
	ctx := context.Background()

	_, err := s.Resolver().Resolve(ctx, "dev", "42")
	require.NoError(t, err)
	require.NoError(t, s.SetRandomize(ctx, "dev", true))
	require.NoError(t, s.SetCrons(ctx, "dev", "0 9 * * 1-5", "30 8 * * 1-5"))

	require.NoError(t, s.Remove(ctx, "dev"))

	assert.Empty(t, kv.keysWithPrefix("standup:room:dev:"))
	rooms, err := s.Registry().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	_, err = s.EnsureFresh(ctx, "dev")
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}

func TestRemove_LeavesSimilarRoomIDsAlone(t *testing.T) {
	kv := newFakeKVStore()
	s := NewStore(kv, &fakeFormClient{form: standupForm()}, "UTC", zap.NewNop())
	ctx := context.Background()

	for _, room := range []string{"team", "team:ops", "teamX"} {
		seedRoom(kv, room)
		require.NoError(t, s.Registry().Add(ctx, room))
	}

	require.NoError(t, s.Remove(ctx, "team"))
	require.NoError(t, s.Remove(ctx, "t*"))

	_, err := s.Get(ctx, "team")
	assert.ErrorIs(t, err, models.ErrNotConfigured)

	for _, room := range []string{"team:ops", "teamX"} {
		cfg, err := s.Get(ctx, room)
		require.NoError(t, err, room)
		assert.Equal(t, "42", cfg.FormID)
		assert.True(t, cfg.Complete(), room)
	}

	rooms, err := s.Registry().List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"team:ops", "teamX"}, rooms)
}

func TestResolve_PartialSaveDoesNotMixFieldIDs(t *testing.T) {
	kv := newFakeKVStore()
	client := &fakeFormClient{form: standupForm()}
	s := NewStore(kv, client, "UTC", zap.NewNop())
	ctx := context.Background()

	_, err := s.Resolver().Resolve(ctx, "dev", "42")
	require.NoError(t, err)

	// 表单字段重建后 ID 全部变化
	rebuilt := standupForm()
	for i := range rebuilt.Fields {
		rebuilt.Fields[i].ID = "2" + rebuilt.Fields[i].ID[1:]
	}
	client.form = rebuilt
	kv.failSetAfter = kv.sets + 2

	_, err = s.Resolver().Resolve(ctx, "dev", "42")
	require.Error(t, err)

	cfg, err := s.Get(ctx, "dev")
	require.NoError(t, err)
	assert.False(t, cfg.Complete())
	assert.Empty(t, kv.keysWithPrefix("standup:room:dev:field:"))

	kv.failSetAfter = 0
	cfg, err = s.EnsureFresh(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, "201", cfg.Fields[models.RoleDate])
	assert.Equal(t, "205", cfg.Fields[models.RoleToday])
}

func TestEnsureFresh_CancelledLeaderDoesNotFailWaiters(t *testing.T) {
	kv := newFakeKVStore()
	kv.data["standup:room:dev:form_id"] = "42"
	client := &fakeFormClient{form: standupForm(), delay: 100 * time.Millisecond}
	s := NewStore(kv, client, "UTC", zap.NewNop())

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := s.EnsureFresh(leaderCtx, "dev")
		leaderErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	waiter := make(chan error, 1)
	go func() {
		cfg, err := s.EnsureFresh(context.Background(), "dev")
		if err == nil && !cfg.Complete() {
			err = errors.New("incomplete config")
		}
		waiter <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	assert.NoError(t, <-waiter)
	assert.Equal(t, 1, client.Calls())
}
