package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talktivity/voicebridge/internal/config"
	"github.com/talktivity/voicebridge/internal/notify"
	"github.com/talktivity/voicebridge/internal/progress"
	"github.com/talktivity/voicebridge/internal/quota"
	"github.com/talktivity/voicebridge/internal/transcript"
)

type fakeConvRepo struct {
	mu    sync.Mutex
	saved []*transcript.Conversation
	err   error
	delay time.Duration
}

func (f *fakeConvRepo) SaveConversation(ctx context.Context, conv *transcript.Conversation) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, conv)
	return nil
}

func (f *fakeConvRepo) RecentConversations(ctx context.Context, userID int64, limit int) ([]transcript.Conversation, error) {
	return nil, nil
}

func (f *fakeConvRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeUsage struct {
	mu       sync.Mutex
	recorded []quota.UsageRecord
	err      error
}

func (f *fakeUsage) RecordUsage(ctx context.Context, rec quota.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, rec)
	return nil
}

type fakeProgressStore struct{}

func (fakeProgressStore) ActiveCourse(ctx context.Context, userID int64) (*progress.UserCourse, error) {
	return nil, nil
}

func (fakeProgressStore) AddSpeakingSeconds(ctx context.Context, userID, courseID int64, week, day int, date time.Time, seconds, goalSeconds int64) error {
	return nil
}

// stateRecorder captures session-state pushes in order.
type stateRecorder struct {
	mu     sync.Mutex
	states []string
	msgs   []string
}

func (r *stateRecorder) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			State   string `json:"state"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		r.mu.Lock()
		r.states = append(r.states, body.State)
		r.msgs = append(r.msgs, body.Message)
		r.mu.Unlock()
	}))
}

func (r *stateRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func newTestSaver(t *testing.T, repo *fakeConvRepo, usage *fakeUsage, rec *stateRecorder) *Saver {
	t.Helper()
	srv := rec.server()
	t.Cleanup(srv.Close)

	notifier := notify.NewNotifier(config.NotifyConfig{APIURL: srv.URL, Timeout: 2 * time.Second})
	prog := progress.NewService(fakeProgressStore{}, 300)
	return NewSaver(repo, usage, prog, transcript.NewStore(), notifier)
}

func liveState(kind quota.Kind) *State {
	st := NewState(7, kind, "room-42", time.Now().Add(-90*time.Second))
	st.SetTranscript(&transcript.Transcript{Turns: []transcript.Turn{
		{Role: "user", Content: "hello there"},
	}})
	return st
}

func TestSaver_SuccessSequence(t *testing.T) {
	repo := &fakeConvRepo{}
	usage := &fakeUsage{}
	rec := &stateRecorder{}
	saver := newTestSaver(t, repo, usage, rec)

	st := liveState(quota.KindPractice)
	saver.Save(context.Background(), st, "disconnected")

	assert.Equal(t, []string{notify.StateSaving, notify.StateSaved}, rec.snapshot())

	require.Equal(t, 1, repo.count())
	assert.Equal(t, int64(7), repo.saved[0].UserID)
	assert.Equal(t, "practice", repo.saved[0].SessionKind)
	assert.InDelta(t, 90, repo.saved[0].DurationSeconds, 2)

	require.Len(t, usage.recorded, 1)
	assert.Equal(t, quota.KindPractice, usage.recorded[0].Kind)
	assert.InDelta(t, 90, usage.recorded[0].DurationSeconds, 2)
}

func TestSaver_EmptyTranscript(t *testing.T) {
	repo := &fakeConvRepo{}
	usage := &fakeUsage{}
	rec := &stateRecorder{}
	saver := newTestSaver(t, repo, usage, rec)

	st := NewState(7, quota.KindCall, "room-42", time.Now().Add(-30*time.Second))
	saver.Save(context.Background(), st, "disconnected")

	// No conversation row, but the elapsed time is still billed.
	assert.Zero(t, repo.count())
	require.Len(t, usage.recorded, 1)
	assert.Equal(t, []string{notify.StateSaving, notify.StateSaveFailed}, rec.snapshot())
	assert.Contains(t, rec.msgs[1], "No conversation content")
}

func TestSaver_PersistFailureStillReleasesHandoff(t *testing.T) {
	repo := &fakeConvRepo{err: errors.New("db down")}
	usage := &fakeUsage{}
	rec := &stateRecorder{}

	srv := rec.server()
	defer srv.Close()
	notifier := notify.NewNotifier(config.NotifyConfig{APIURL: srv.URL, Timeout: 2 * time.Second})
	handoff := transcript.NewStore()
	saver := NewSaver(repo, usage, progress.NewService(fakeProgressStore{}, 300), handoff, notifier)

	st := liveState(quota.KindRoleplay)
	saver.Save(context.Background(), st, "time_limit")

	// A report request blocked on Await must still get the transcript.
	assert.NotNil(t, handoff.Get(7))
	assert.Equal(t, []string{notify.StateSaving, notify.StateSaveFailed}, rec.snapshot())
	assert.Contains(t, rec.msgs[1], "try again later")
}

func TestSaver_UsageFailureAbortsSave(t *testing.T) {
	repo := &fakeConvRepo{}
	usage := &fakeUsage{err: errors.New("db down")}
	rec := &stateRecorder{}
	saver := newTestSaver(t, repo, usage, rec)

	saver.Save(context.Background(), liveState(quota.KindPractice), "disconnected")

	assert.Zero(t, repo.count())
	assert.Equal(t, []string{notify.StateSaving, notify.StateSaveFailed}, rec.snapshot())
}
