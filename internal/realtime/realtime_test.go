package realtime

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/signquest-backend/internal/config"
	"github.com/stemsi/signquest-backend/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testRoom(code string, now time.Time) model.MultiplayerRoom {
	return model.MultiplayerRoom{
		Code:         code,
		HostID:       "host-1",
		HostName:     "Ana",
		IsActive:     true,
		CreatedAt:    now,
		ExpiresAt:    now.Add(30 * time.Minute),
		GameState:    model.GameStateWaiting,
		QuestionType: model.DefaultQuestionType,
	}
}

func TestRoomStoreCreateAndGet(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRoomStore(rdb, zerolog.New(io.Discard))
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()

	if err := store.CreateIfAbsent(ctx, testRoom("AB12Z", now)); err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	if err := store.CreateIfAbsent(ctx, testRoom("AB12Z", now)); !errors.Is(err, ErrRoomExists) {
		t.Fatalf("second CreateIfAbsent() error = %v, want ErrRoomExists", err)
	}

	got, err := store.Get(ctx, "AB12Z")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.HostName != "Ana" || !got.IsActive || got.GameState != model.GameStateWaiting {
		t.Fatalf("Get() = %+v", got)
	}
	if !got.CreatedAt.Equal(now) || !got.ExpiresAt.Equal(now.Add(30*time.Minute)) {
		t.Fatalf("timestamps = %v / %v", got.CreatedAt, got.ExpiresAt)
	}

	if _, err := store.Get(ctx, "ZZZZZ"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrRoomNotFound", err)
	}
}

func TestRoomStoreUpdate(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRoomStore(rdb, zerolog.New(io.Discard))
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.CreateIfAbsent(ctx, testRoom("QWE12", now)); err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}

	updated, err := store.Update(ctx, "QWE12", func(r *model.MultiplayerRoom) error {
		r.JoinerID = "joiner-1"
		r.JoinerName = "Ben"
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.JoinerName != "Ben" {
		t.Fatalf("Update() = %+v", updated)
	}

	errFull := errors.New("full")
	_, err = store.Update(ctx, "QWE12", func(r *model.MultiplayerRoom) error {
		if r.HasJoiner() {
			return errFull
		}
		r.JoinerName = "Cara"
		return nil
	})
	if !errors.Is(err, errFull) {
		t.Fatalf("Update() error = %v, want errFull", err)
	}

	got, _ := store.Get(ctx, "QWE12")
	if got.JoinerName != "Ben" {
		t.Fatalf("rejected update was written: %+v", got)
	}

	if _, err := store.Update(ctx, "NOPE1", func(*model.MultiplayerRoom) error { return nil }); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrRoomNotFound", err)
	}
}

func TestRoomStoreDeleteAndDue(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRoomStore(rdb, zerolog.New(io.Discard))
	log := NewMessageLog(rdb, 100, time.Hour, zerolog.New(io.Discard))
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.CreateIfAbsent(ctx, testRoom("DUE01", now.Add(-10*time.Minute))); err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	if err := store.CreateIfAbsent(ctx, testRoom("LIVE1", now)); err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	if _, err := log.Append(ctx, "DUE01", model.GameMessage{Type: model.MessageGameStart}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	due, err := store.DueRooms(ctx, now.Add(25*time.Minute))
	if err != nil {
		t.Fatalf("DueRooms() error = %v", err)
	}
	if len(due) != 1 || due[0] != "DUE01" {
		t.Fatalf("DueRooms() = %v, want [DUE01]", due)
	}

	existed, err := store.Delete(ctx, "DUE01")
	if err != nil || !existed {
		t.Fatalf("Delete() = %v, %v", existed, err)
	}
	if mr.Exists(config.CacheKey.RoomMessagesKey("DUE01")) {
		t.Fatalf("message log survived delete")
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Fatalf("Count() = %d, want 1", n)
	}

	existed, err = store.Delete(ctx, "DUE01")
	if err != nil || existed {
		t.Fatalf("second Delete() = %v, %v", existed, err)
	}
}

func TestRoomStoreWatch(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRoomStore(rdb, zerolog.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.CreateIfAbsent(ctx, testRoom("WAT01", time.Now())); err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}

	events, err := store.Watch(ctx, "WAT01")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if _, err := store.Update(ctx, "WAT01", func(r *model.MultiplayerRoom) error {
		r.GameState = model.GameStatePlaying
		return nil
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := store.Delete(ctx, "WAT01"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	want := []model.RoomEventKind{model.RoomChanged, model.RoomRemoved}
	for _, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind || ev.Code != "WAT01" {
				t.Fatalf("event = %+v, want kind %s", ev, kind)
			}
			if kind == model.RoomChanged && (ev.Room == nil || ev.Room.GameState != model.GameStatePlaying) {
				t.Fatalf("changed event room = %+v", ev.Room)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("watch channel not closed after cancel")
		}
	}
}

func TestRoomStoreDeleteAfterTTLStillNotifies(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRoomStore(rdb, zerolog.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.CreateIfAbsent(ctx, testRoom("TTL01", time.Now())); err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}
	events, err := store.Watch(ctx, "TTL01")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	mr.FastForward(31 * time.Minute)
	if mr.Exists(config.CacheKey.RoomKey("TTL01")) {
		t.Fatalf("room hash should have expired")
	}

	existed, err := store.Delete(ctx, "TTL01")
	if err != nil || existed {
		t.Fatalf("Delete() = %v, %v; want false, nil", existed, err)
	}
	select {
	case ev := <-events:
		if ev.Kind != model.RoomRemoved {
			t.Fatalf("event = %+v, want removed", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watchers of an expired room were not told it was removed")
	}
}

func TestMessageLogHistoryOrderAndTrim(t *testing.T) {
	_, rdb := newTestRedis(t)
	log := NewMessageLog(rdb, 3, time.Hour, zerolog.New(io.Discard))
	ctx := context.Background()

	// Same caller timestamp for every entry: ids still order them.
	for i := 0; i < 5; i++ {
		msg := model.GameMessage{
			Type:      model.MessageAnswerSubmitted,
			PlayerID:  "p1",
			Payload:   string(rune('A' + i)),
			Timestamp: 1000,
		}
		if _, err := log.Append(ctx, "LOG01", msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	msgs, err := log.History(ctx, "LOG01")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("History() len = %d, want 5", len(msgs))
	}
	for i, m := range msgs {
		if m.Payload != string(rune('A'+i)) || m.Timestamp != 1000 {
			t.Fatalf("msgs[%d] = %+v", i, m)
		}
	}

	removed, err := log.Trim(ctx, "LOG01")
	if err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("Trim() removed %d, want 2", removed)
	}
	msgs, _ = log.History(ctx, "LOG01")
	if len(msgs) != 3 || msgs[0].Payload != "C" {
		t.Fatalf("after trim = %+v", msgs)
	}
}

func TestMessageLogListenReplaysThenFollows(t *testing.T) {
	_, rdb := newTestRedis(t)
	log := NewMessageLog(rdb, 100, time.Hour, zerolog.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := log.Append(ctx, "LIS01", model.GameMessage{Type: model.MessagePlayerJoined, PlayerID: "p2"})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	ch := log.ListenFrom(ctx, "LIS01", StartID)

	select {
	case m := <-ch:
		if m.ID != first || m.Type != model.MessagePlayerJoined {
			t.Fatalf("replayed = %+v", m)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for replay")
	}

	if _, err := log.Append(ctx, "LIS01", model.GameMessage{Type: model.MessageGameStart, PlayerID: "p1"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	select {
	case m := <-ch:
		if m.Type != model.MessageGameStart {
			t.Fatalf("followed = %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for live entry")
	}

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				msgs, _ := log.History(context.Background(), "LIS01")
				if len(msgs) != 2 {
					t.Fatalf("cancel changed the log: %d entries", len(msgs))
				}
				return
			}
		case <-deadline:
			t.Fatalf("listener not closed after cancel")
		}
	}
}
