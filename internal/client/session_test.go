package client

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"jamsync/internal/library"
	"jamsync/internal/protocol"
	"jamsync/internal/room"
	"jamsync/internal/syncbus"
)

func TestApplyLocalStateTracksQueueAndPlayback(t *testing.T) {
	s := &Session{}

	s.applyLocalState(&protocol.Message{Type: protocol.TypeRoomCreated, RoomCode: "ABCDEF"})
	if s.RoomCode != "ABCDEF" {
		t.Fatalf("expected room code to be mirrored, got %q", s.RoomCode)
	}

	s.applyLocalState(&protocol.Message{
		Type:       protocol.TypeQueueUpdated,
		Queue:      []protocol.Track{{SongID: "a"}, {SongID: "b"}},
		CurrentIdx: 0,
	})
	if len(s.Queue) != 2 || s.CurrentIdx != 0 {
		t.Fatalf("unexpected mirrored queue state: %#v idx=%d", s.Queue, s.CurrentIdx)
	}

	// A song_started at index 0 must not be mistaken for "unset" — this
	// was previously a bug where a zero CurrentIdx was silently dropped.
	s.applyLocalState(&protocol.Message{Type: protocol.TypeSongStarted, SongIndex: 0})
	if s.CurrentIdx != 0 || s.Paused {
		t.Fatalf("expected current index 0 and playing, got idx=%d paused=%v", s.CurrentIdx, s.Paused)
	}

	s.applyLocalState(&protocol.Message{Type: protocol.TypeStreamPaused})
	if !s.Paused {
		t.Fatal("expected Paused to be true after stream_paused")
	}
	s.applyLocalState(&protocol.Message{Type: protocol.TypeStreamResumed})
	if s.Paused {
		t.Fatal("expected Paused to be false after stream_resumed")
	}
}

func startTestJamServer(t *testing.T) string {
	t.Helper()

	lib, err := library.New(filepath.Join(t.TempDir(), "library.json"))
	if err != nil {
		t.Fatalf("new library: %v", err)
	}

	h := syncbus.NewHandler(syncbus.Config{
		Rooms:      room.NewRegistry(),
		Library:    lib,
		ChunkSize:  4096,
		SampleRate: 44100,
		RateHz:     50,
		RateBurst:  50,
	})

	e := echo.New()
	h.Register(e)
	httpServer := httptest.NewServer(e)
	t.Cleanup(httpServer.Close)

	return "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
}

func TestSessionCreateAndJoinRoom(t *testing.T) {
	addr := startTestJamServer(t)

	host, err := Dial(addr, 10)
	if err != nil {
		t.Fatalf("dial host: %v", err)
	}
	defer host.Close()

	if err := host.CreateRoom("alice", 1); err != nil {
		t.Fatalf("create room: %v", err)
	}

	var roomCode string
	deadline := time.After(3 * time.Second)
	for roomCode == "" {
		select {
		case msg := <-host.Events():
			if msg.Type == protocol.TypeRoomCreated {
				roomCode = msg.RoomCode
			}
		case <-deadline:
			t.Fatal("timed out waiting for room_created")
		}
	}

	guest, err := Dial(addr, 10)
	if err != nil {
		t.Fatalf("dial guest: %v", err)
	}
	defer guest.Close()

	if err := guest.JoinRoom(roomCode, "bob", 2); err != nil {
		t.Fatalf("join room: %v", err)
	}

	joined := false
	deadline = time.After(3 * time.Second)
	for !joined {
		select {
		case msg := <-guest.Events():
			if msg.Type == protocol.TypeRoomJoined {
				joined = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for room_joined")
		}
	}

	if guest.RoomCode != roomCode {
		t.Fatalf("expected mirrored room code %q, got %q", roomCode, guest.RoomCode)
	}
}
