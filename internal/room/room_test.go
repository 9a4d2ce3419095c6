package room

import (
	"testing"

	"jamsync/internal/library"
	"jamsync/internal/protocol"
)

func TestAddParticipantAssignsSeats(t *testing.T) {
	r := New("ABCDEF")
	defer r.Close()

	r.SubmitSync(func(room *Room) {
		room.AddParticipant(&Participant{ID: "u1", Username: "alice", Send: make(chan *protocol.Message, 1)})
		room.AddParticipant(&Participant{ID: "u2", Username: "bob", Send: make(chan *protocol.Message, 1)})
	})

	parts := r.Participants()
	if len(parts) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(parts))
	}
	if parts[0].Seat != 0 {
		t.Fatalf("expected first participant in seat 0, got %d", parts[0].Seat)
	}
	if parts[1].Seat != 1 {
		t.Fatalf("expected second participant in seat 1, got %d", parts[1].Seat)
	}
}

func TestAddParticipantOversubscribedReusesSeatZero(t *testing.T) {
	r := New("ABCDEF")
	defer r.Close()

	r.SubmitSync(func(room *Room) {
		for i := 0; i < SeatCount; i++ {
			room.AddParticipant(&Participant{ID: string(rune('a' + i)), Send: make(chan *protocol.Message, 1)})
		}
		room.AddParticipant(&Participant{ID: "overflow", Send: make(chan *protocol.Message, 1)})
	})

	parts := r.Participants()
	last := parts[len(parts)-1]
	if last.Seat != 0 {
		t.Fatalf("expected oversubscribed participant to reuse seat 0, got %d", last.Seat)
	}
}

func TestRemoveParticipantPromotesNewHost(t *testing.T) {
	r := New("ABCDEF")
	defer r.Close()

	r.SubmitSync(func(room *Room) {
		room.AddParticipant(&Participant{ID: "host", Username: "Alice", Send: make(chan *protocol.Message, 1)})
		room.AddParticipant(&Participant{ID: "guest", Username: "Bob", Send: make(chan *protocol.Message, 1)})
	})

	var departedUsername, newHost string
	var changed, empty bool
	r.SubmitSync(func(room *Room) {
		departedUsername, newHost, changed, empty = room.RemoveParticipant("host")
	})

	if departedUsername != "Alice" {
		t.Fatalf("expected departed username %q, got %q", "Alice", departedUsername)
	}

	if empty {
		t.Fatal("room should not be empty after removing one of two participants")
	}
	if !changed {
		t.Fatal("expected host change when the host leaves")
	}
	if newHost != "guest" {
		t.Fatalf("expected guest promoted to host, got %q", newHost)
	}

	parts := r.Participants()
	if len(parts) != 1 || parts[0].Seat != 0 {
		t.Fatalf("expected remaining participant in seat 0, got %#v", parts)
	}
}

func TestRemoveParticipantLastLeavesRoomEmpty(t *testing.T) {
	r := New("ABCDEF")
	defer r.Close()

	r.SubmitSync(func(room *Room) {
		room.AddParticipant(&Participant{ID: "solo", Send: make(chan *protocol.Message, 1)})
	})

	var empty bool
	r.SubmitSync(func(room *Room) {
		_, _, _, empty = room.RemoveParticipant("solo")
	})

	if !empty {
		t.Fatal("expected room to report empty after removing its only participant")
	}
}

func TestShuffleQueuePreservesCurrentTrack(t *testing.T) {
	r := New("ABCDEF")
	defer r.Close()

	r.SubmitSync(func(room *Room) {
		for i := 0; i < 5; i++ {
			room.EnqueueTrack(&library.Track{SongID: string(rune('a' + i))})
		}
		room.SetCurrentIndex(2)
		room.ShuffleQueue()
	})

	queue := r.Queue()
	if queue[2].Track.SongID != "c" {
		t.Fatalf("expected current track at index 2 to remain 'c', got %q", queue[2].Track.SongID)
	}
	for i := 0; i <= 2; i++ {
		if queue[i].Track.SongID != string(rune('a'+i)) {
			t.Fatalf("expected entries up to and including current index untouched, index %d was %q", i, queue[i].Track.SongID)
		}
	}
}

func TestRemoveFromQueueShiftsCurrentIndex(t *testing.T) {
	tests := []struct {
		name         string
		currentIdx   int
		removeIdx    int
		wantCurrent  int
	}{
		{"remove before current shifts down", 2, 0, 1},
		{"remove at current stays put", 2, 2, 2},
		{"remove after current unaffected", 1, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("ABCDEF")
			defer r.Close()

			r.SubmitSync(func(room *Room) {
				for i := 0; i < 4; i++ {
					room.EnqueueTrack(&library.Track{SongID: string(rune('a' + i))})
				}
				room.SetCurrentIndex(tt.currentIdx)
				room.RemoveFromQueue(tt.removeIdx)
			})

			if got := r.CurrentIndex(); got != tt.wantCurrent {
				t.Fatalf("expected current index %d, got %d", tt.wantCurrent, got)
			}
			if got := len(r.Queue()); got != 3 {
				t.Fatalf("expected 3 entries remaining, got %d", got)
			}
		})
	}
}

func TestGenerateCodeLength(t *testing.T) {
	code := GenerateCode()
	if len(code) != 6 {
		t.Fatalf("expected 6-character code, got %q", code)
	}
}

func TestGenerateCodeUsesFullAlphanumericAlphabet(t *testing.T) {
	for i := 0; i < 6; i++ {
		code := GenerateCode()
		for _, c := range code {
			if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
				t.Fatalf("code %q contains character outside [A-Z0-9]: %q", code, c)
			}
		}
	}
}
