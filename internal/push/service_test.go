package push

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emelmujiro/offline-gateway/internal/models"
	"github.com/emelmujiro/offline-gateway/internal/realtime"
	"github.com/emelmujiro/offline-gateway/internal/replay"
	apperrors "github.com/emelmujiro/offline-gateway/pkg/errors"
)

type fakeRegistry struct {
	windows   []realtime.Window
	broadcast []realtime.Message
	sent      map[string][]realtime.Message
	deadIDs   map[string]bool
}

func newFakeRegistry(windows ...realtime.Window) *fakeRegistry {
	return &fakeRegistry{
		windows: windows,
		sent:    make(map[string][]realtime.Message),
		deadIDs: make(map[string]bool),
	}
}

func (r *fakeRegistry) Windows() []realtime.Window { return r.windows }

func (r *fakeRegistry) Send(id string, msg realtime.Message) bool {
	if r.deadIDs[id] {
		return false
	}
	r.sent[id] = append(r.sent[id], msg)
	return true
}

func (r *fakeRegistry) Broadcast(msg realtime.Message) {
	r.broadcast = append(r.broadcast, msg)
}

type memoryStore struct {
	subs map[string]models.PushSubscription
}

func newMemoryStore() *memoryStore {
	return &memoryStore{subs: make(map[string]models.PushSubscription)}
}

func (s *memoryStore) Save(_ context.Context, sub *models.PushSubscription) error {
	s.subs[sub.Endpoint] = *sub
	return nil
}

func (s *memoryStore) Delete(_ context.Context, endpoint string) error {
	delete(s.subs, endpoint)
	return nil
}

func (s *memoryStore) List(_ context.Context) ([]models.PushSubscription, error) {
	out := make([]models.PushSubscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out, nil
}

type fakeSender struct {
	statuses map[string]int
	err      error
	sent     []string
}

func (s *fakeSender) Send(_ context.Context, sub models.PushSubscription, _ []byte) (int, error) {
	s.sent = append(s.sent, sub.Endpoint)
	if s.err != nil {
		return 0, s.err
	}
	if status, ok := s.statuses[sub.Endpoint]; ok {
		return status, nil
	}
	return http.StatusCreated, nil
}

func testConfig() Config {
	return Config{
		AppPath:    "/emelmujiro",
		DefaultURL: "/emelmujiro/",
		Icon:       "/emelmujiro/logo192.png",
		Badge:      "/emelmujiro/logo192.png",
	}
}

func TestOnPushAppliesDefaults(t *testing.T) {
	registry := newFakeRegistry()
	svc := NewService(registry, newMemoryStore(), nil, testConfig())

	notification, err := svc.OnPush(context.Background(), []byte(`{"title":"새 글","body":"본문"}`))
	require.NoError(t, err)

	require.Equal(t, "새 글", notification.Title)
	require.Equal(t, "/emelmujiro/logo192.png", notification.Icon)
	require.Equal(t, []int{200, 100, 200}, notification.Vibrate)
	require.Equal(t, "/emelmujiro/", notification.Data.URL)
	require.Equal(t, 1, notification.Data.PrimaryKey)
	require.Len(t, notification.Actions, 2)
	require.Equal(t, "view", notification.Actions[0].Action)
	require.Equal(t, "close", notification.Actions[1].Action)

	require.Len(t, registry.broadcast, 1)
	require.Equal(t, "notification", registry.broadcast[0].Event)
}

func TestOnPushKeepsExplicitFields(t *testing.T) {
	svc := NewService(newFakeRegistry(), newMemoryStore(), nil, testConfig())

	notification, err := svc.OnPush(context.Background(), []byte(
		`{"title":"t","body":"b","url":"/emelmujiro/blog/3","id":7,"actions":[{"action":"view","title":"읽기"}]}`,
	))
	require.NoError(t, err)
	require.Equal(t, "/emelmujiro/blog/3", notification.Data.URL)
	require.Equal(t, 7, notification.Data.PrimaryKey)
	require.Len(t, notification.Actions, 1)
}

func TestOnPushRejectsMalformedPayload(t *testing.T) {
	registry := newFakeRegistry()
	svc := NewService(registry, newMemoryStore(), nil, testConfig())

	for _, raw := range [][]byte{nil, []byte("not json"), []byte(`{"body":"no title"}`)} {
		_, err := svc.OnPush(context.Background(), raw)
		require.ErrorIs(t, err, apperrors.ErrBadPushPayload)
	}
	require.Empty(t, registry.broadcast, "a rejected payload must not surface a notification")
}

func TestOnPushFansOutToSubscriptions(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Save(context.Background(), &models.PushSubscription{
		Endpoint: "https://push.example.com/a", P256dh: "k", Auth: "s",
	}))
	sender := &fakeSender{}
	svc := NewService(newFakeRegistry(), store, sender, testConfig())

	_, err := svc.OnPush(context.Background(), []byte(`{"title":"t","body":"b"}`))
	require.NoError(t, err)
	require.Equal(t, []string{"https://push.example.com/a"}, sender.sent)
}

func TestOnPushPrunesGoneSubscriptions(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &models.PushSubscription{
		Endpoint: "https://push.example.com/gone", P256dh: "k", Auth: "s",
	}))
	sender := &fakeSender{statuses: map[string]int{"https://push.example.com/gone": http.StatusGone}}
	svc := NewService(newFakeRegistry(), store, sender, testConfig())

	_, err := svc.OnPush(ctx, []byte(`{"title":"t","body":"b"}`))
	require.NoError(t, err)

	subs, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, subs, "gone endpoints are dropped")
}

func TestOnPushKeepsSubscriptionsOnTransportError(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &models.PushSubscription{
		Endpoint: "https://push.example.com/a", P256dh: "k", Auth: "s",
	}))
	sender := &fakeSender{err: errors.New("push service unreachable")}
	svc := NewService(newFakeRegistry(), store, sender, testConfig())

	_, err := svc.OnPush(ctx, []byte(`{"title":"t","body":"b"}`))
	require.NoError(t, err)

	subs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1, "transient failures must not drop subscriptions")
}

func TestClickFocusesFirstApplicationWindow(t *testing.T) {
	registry := newFakeRegistry(
		realtime.Window{ID: "w1", URL: "https://other.example.com/"},
		realtime.Window{ID: "w2", URL: "https://host.example.com/emelmujiro/about"},
		realtime.Window{ID: "w3", URL: "https://host.example.com/emelmujiro/"},
	)
	svc := NewService(registry, newMemoryStore(), nil, testConfig())

	result := svc.OnNotificationClick(context.Background(), "view", "/emelmujiro/blog/1")
	require.Equal(t, ClickFocused, result.Action)
	require.Equal(t, "w2", result.WindowID)
	require.Len(t, registry.sent["w2"], 1)
	require.Equal(t, "focus", registry.sent["w2"][0].Event)
	require.Empty(t, registry.sent["w3"], "only one window is focused")
}

func TestClickSkipsDeadWindows(t *testing.T) {
	registry := newFakeRegistry(
		realtime.Window{ID: "w1", URL: "/emelmujiro/"},
		realtime.Window{ID: "w2", URL: "/emelmujiro/contact"},
	)
	registry.deadIDs["w1"] = true
	svc := NewService(registry, newMemoryStore(), nil, testConfig())

	result := svc.OnNotificationClick(context.Background(), "", "")
	require.Equal(t, ClickFocused, result.Action)
	require.Equal(t, "w2", result.WindowID)
}

func TestClickOpensWhenNoWindowMatches(t *testing.T) {
	registry := newFakeRegistry(realtime.Window{ID: "w1", URL: "https://other.example.com/"})
	svc := NewService(registry, newMemoryStore(), nil, testConfig())

	result := svc.OnNotificationClick(context.Background(), "view", "/emelmujiro/blog/1")
	require.Equal(t, ClickOpen, result.Action)
	require.Equal(t, "/emelmujiro/blog/1", result.URL)
}

func TestClickCloseDismisses(t *testing.T) {
	registry := newFakeRegistry(realtime.Window{ID: "w1", URL: "/emelmujiro/"})
	svc := NewService(registry, newMemoryStore(), nil, testConfig())

	result := svc.OnNotificationClick(context.Background(), "close", "/emelmujiro/")
	require.Equal(t, ClickDismissed, result.Action)
	require.Empty(t, registry.sent)
}

func TestNotifyDeliveredBroadcastsConfirmation(t *testing.T) {
	registry := newFakeRegistry()
	svc := NewService(registry, newMemoryStore(), nil, testConfig())

	svc.NotifyDelivered(context.Background(), replay.TagContactForm)
	require.Len(t, registry.broadcast, 1)

	notification, ok := registry.broadcast[0].Data.(*Notification)
	require.True(t, ok)
	require.Equal(t, "문의 전송 완료", notification.Title)
}

func TestSubscribeValidatesKeys(t *testing.T) {
	svc := NewService(newFakeRegistry(), newMemoryStore(), nil, testConfig())

	err := svc.Subscribe(context.Background(), &models.PushSubscription{Endpoint: "https://a"})
	require.Error(t, err)

	require.NoError(t, svc.Subscribe(context.Background(), &models.PushSubscription{
		Endpoint: "https://a", P256dh: "k", Auth: "s",
	}))
}
