// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ccheshirecat/usbvlan/internal/agent/eventbus/memory"
	"github.com/ccheshirecat/usbvlan/internal/agent/events"
	"github.com/ccheshirecat/usbvlan/internal/shared/logging"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestSQLiteStoreAppendRecent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, typ := range []string{events.TypeDeviceArrived, events.TypeVLANConfigured, events.TypeVLANDestroyed} {
		ev := events.AgentEvent{Type: typ, Interface: "en5", VLAN: "vlan10", Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := store.Append(ctx, ev); err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != events.TypeVLANDestroyed || got[1].Type != events.TypeVLANConfigured {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got[0].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("timestamp = %v", got[0].Timestamp)
	}
	if got[0].Interface != "en5" || got[0].VLAN != "vlan10" {
		t.Fatalf("fields lost: %+v", got[0])
	}
}

func TestSQLiteStoreReopenKeepsMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Append(ctx, events.AgentEvent{Type: events.TypeDeviceArrived}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := first.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close(ctx)
	got, err := second.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event after reopen, got %d", len(got))
	}
}

func TestMemoryStoreRing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	for _, typ := range []string{"a", "b", "c", "d"} {
		if err := store.Append(ctx, events.AgentEvent{Type: typ}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	var types []string
	for _, ev := range got {
		types = append(types, ev.Type)
	}
	if len(types) != 3 || types[0] != "d" || types[1] != "c" || types[2] != "b" {
		t.Fatalf("types = %v", types)
	}

	_ = store.Close(ctx)
	if err := store.Append(ctx, events.AgentEvent{Type: "e"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("append after close = %v", err)
	}
}

func TestRecorderPersistsBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.New()
	store := NewMemoryStore(8)
	rec := NewRecorder(store, bus, logging.Discard())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = bus.Publish(ctx, events.TopicAgentEvents, events.AgentEvent{Type: events.TypeVLANConfigured})
		got, _ := store.Recent(ctx, 1)
		if len(got) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("event never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}
