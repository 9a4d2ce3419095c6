package audit

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRecordAndReadRoomEvents(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.RecordRoomEvent(ctx, "ABCDEF", "room_created", "u1", "alice"); err != nil {
		t.Fatalf("record room event: %v", err)
	}
	if err := st.RecordRoomEvent(ctx, "ABCDEF", "participant_left", "u1", ""); err != nil {
		t.Fatalf("record room event: %v", err)
	}

	events, err := st.RecentRoomEvents(ctx, "ABCDEF", 10)
	if err != nil {
		t.Fatalf("recent room events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != "room_created" {
		t.Fatalf("expected oldest-first ordering, got %q first", events[0].Event)
	}
}

func TestRecordAcquisitionRequiresFields(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	if err := st.RecordAcquisition(context.Background(), "song1", "", "success", ""); err == nil {
		t.Fatal("expected error when url is empty")
	}
}
