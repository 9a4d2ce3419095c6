// Package client implements the reference client session (C6): the
// connection to a room's sync bus, local mirrored state, and the control
// emitter that turns user actions into outbound events.
package client

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/gorilla/websocket"

	"jamsync/internal/protocol"
)

// samplesPerChunk and canonicalSampleRate mirror the server's canonical PCM
// format; the client must use the same formula the engine does to stay in
// frame-phase after a seek or resume.
const (
	canonicalSampleRate = 44100
	canonicalChunkSize  = 4096
	samplesPerChunk     = canonicalChunkSize / 2
)

func chunkIndexForPosition(positionSeconds float64) int {
	return int(math.Floor(positionSeconds * float64(canonicalSampleRate) / float64(samplesPerChunk)))
}

// Session is one client's live connection to the jam session server. State
// here mirrors the room's authoritative state; every mirrored room field is
// only ever updated in response to a server event, never optimistically.
// Username is the client's own name, set when it creates or joins a room.
type Session struct {
	conn   *websocket.Conn
	sendMu sync.Mutex // serializes writes from the transport loop and user-action calls

	RoomCode   string
	Username   string
	Players    []protocol.PlayerInfo
	Queue      []protocol.Track
	CurrentIdx int
	Paused     bool

	// songActive is true once a song_started has been observed for the
	// current queue and no subsequent empty-queue transition has cleared
	// it; it gates the auto-play contract so the client only ever emits
	// play_song(0) once per non-empty-queue transition.
	songActive      bool
	streamStartedAt time.Time
	pausedPosition  float64

	events chan *protocol.Message

	seekDebounce func(func())
	player       *Player
}

// Dial connects to the jam session server at addr (e.g. "ws://host:5000/ws").
func Dial(addr string, seekDebounceMs int) (*Session, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}

	s := &Session{
		conn:         conn,
		events:       make(chan *protocol.Message, 64),
		seekDebounce: debounce.New(time.Duration(seekDebounceMs) * time.Millisecond),
	}
	go s.readLoop()
	return s, nil
}

// Events returns the channel of inbound sync events. Callers should select
// on it continuously to keep mirrored state current.
func (s *Session) Events() <-chan *protocol.Message { return s.events }

// Close closes the underlying connection.
func (s *Session) Close() error {
	close(s.events)
	return s.conn.Close()
}

func (s *Session) readLoop() {
	defer func() {
		recover() // guards against a send on the closed events channel during shutdown
	}()
	for {
		var msg protocol.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			slog.Debug("client read error", "err", err)
			return
		}
		wasEmpty := len(s.Queue) == 0
		s.applyLocalState(&msg)
		if wasEmpty && s.shouldAutoPlay(&msg) {
			go func() { _ = s.PlaySong(0) }()
		}
		s.events <- &msg
	}
}

// shouldAutoPlay reports whether msg is the queue transition that the
// auto-play contract cares about: the queue is non-empty and nothing is
// currently playing. The transport loop calls it only when the queue was
// empty before msg was applied. Checked by the transport loop rather than
// from inside applyLocalState so the state mirror stays a pure function of
// the messages it has seen, with no side effects of its own.
func (s *Session) shouldAutoPlay(msg *protocol.Message) bool {
	switch msg.Type {
	case protocol.TypeQueueUpdated, protocol.TypeQueueSynced:
		return !s.songActive && len(s.Queue) > 0
	default:
		return false
	}
}

// applyLocalState updates mirrored fields before the event is handed to the
// caller, so UI code can always trust Session's fields are current as of
// the event it just received.
func (s *Session) applyLocalState(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeRoomCreated, protocol.TypeRoomJoined:
		s.RoomCode = msg.RoomCode
	case protocol.TypePlayersUpdated:
		s.Players = msg.Players
	case protocol.TypeQueueUpdated, protocol.TypeQueueSynced:
		s.Queue = msg.Queue
		s.CurrentIdx = msg.CurrentIdx
		if len(s.Queue) == 0 {
			s.CurrentIdx = -1
			s.songActive = false
		}
	case protocol.TypeCurrentIndexSynced:
		s.CurrentIdx = msg.CurrentIdx
	case protocol.TypeSongStarted:
		s.CurrentIdx = msg.SongIndex
		s.Paused = false
		s.songActive = true
		s.streamStartedAt = time.Now()
		s.pausedPosition = 0
	case protocol.TypeStreamPaused:
		s.Paused = true
		s.pausedPosition = msg.Position
	case protocol.TypeStreamResumed:
		s.Paused = false
		s.pausedPosition = msg.Position
		s.streamStartedAt = time.Now().Add(-time.Duration(msg.Position * float64(time.Second)))
	case protocol.TypeStreamSeeked:
		s.pausedPosition = msg.Position
		s.streamStartedAt = time.Now().Add(-time.Duration(msg.Position * float64(time.Second)))
	}
}

// position returns the client's local estimate of playback position,
// per the local-clock contract: elapsed time since the last known start
// point while playing, or the position at which playback was paused.
func (s *Session) position() float64 {
	if s.Paused {
		return s.pausedPosition
	}
	return time.Since(s.streamStartedAt).Seconds()
}

func (s *Session) send(msg *protocol.Message) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// CreateRoom emits create_room.
func (s *Session) CreateRoom(username string, colorIdx int) error {
	s.Username = username
	return s.send(&protocol.Message{Type: protocol.TypeCreateRoom, Username: username, ColorIdx: colorIdx})
}

// JoinRoom emits join_room.
func (s *Session) JoinRoom(roomCode, username string, colorIdx int) error {
	s.Username = username
	return s.send(&protocol.Message{Type: protocol.TypeJoinRoom, RoomCode: roomCode, Username: username, ColorIdx: colorIdx})
}

// AddURLToQueue emits add_url_to_queue.
func (s *Session) AddURLToQueue(url string) error {
	return s.send(&protocol.Message{Type: protocol.TypeAddURLToQueue, URL: url})
}

// PlaySong emits play_song for the given queue index.
func (s *Session) PlaySong(index int) error {
	return s.send(&protocol.Message{Type: protocol.TypePlaySong, SongIndex: index})
}

// TogglePlay pauses if currently playing, resumes otherwise. The current
// local position rides along so other participants' resume chunk-index
// recomputation stays in frame-phase.
func (s *Session) TogglePlay() error {
	pos := s.position()
	if s.Paused {
		return s.send(&protocol.Message{Type: protocol.TypeResumeStream, SongIndex: s.CurrentIdx, Position: pos})
	}
	return s.send(&protocol.Message{Type: protocol.TypePauseStream, SongIndex: s.CurrentIdx, Position: pos})
}

// Seek emits seek_stream, coalesced through the debouncer so a user
// dragging a scrub bar doesn't flood the server with seek events.
func (s *Session) Seek(positionSeconds float64) {
	s.seekDebounce(func() {
		_ = s.send(&protocol.Message{Type: protocol.TypeSeekStream, Position: positionSeconds})
	})
}

// ShuffleQueue emits shuffle_queue.
func (s *Session) ShuffleQueue() error {
	return s.send(&protocol.Message{Type: protocol.TypeShuffleQueue})
}

// RemoveFromQueue emits remove_from_queue for index.
func (s *Session) RemoveFromQueue(index int) error {
	return s.send(&protocol.Message{Type: protocol.TypeRemoveFromQueue, RemoveIndex: index})
}

// SetTalking emits the local talking-state flag.
func (s *Session) SetTalking(isTalking bool) error {
	return s.send(&protocol.Message{Type: protocol.TypeUserTalkingState, Username: s.Username, IsTalking: isTalking})
}

// SendVoiceFrame relays one voice audio frame.
func (s *Session) SendVoiceFrame(frame []byte) error {
	return s.send(&protocol.Message{Type: protocol.TypeVoiceData, Username: s.Username, Voice: frame})
}

// RequestChunk requests one PCM chunk of the currently playing track.
func (s *Session) RequestChunk(chunkIndex int) error {
	return s.send(&protocol.Message{Type: protocol.TypeRequestChunk, ChunkIndex: chunkIndex})
}

// AttachPlayer wires a local audio Player that HandleEvent then drives from
// audio_stream_ready, audio_chunk and stream pause/resume events.
func (s *Session) AttachPlayer(p *Player) { s.player = p }

// HandleEvent lets a caller that already owns the inbound channel loop
// delegate default handling of audio-relevant events to the attached
// player. This is also where the pull-style chunk-request loop lives: each
// received chunk triggers a request for the next one, so the server never
// has to push faster than the local output device can drain.
func (s *Session) HandleEvent(msg *protocol.Message) {
	if s.player == nil {
		return
	}
	switch msg.Type {
	case protocol.TypeAudioStreamReady:
		s.player.Reset(msg.TotalChunks)
		_ = s.RequestChunk(0)
	case protocol.TypeAudioChunk:
		raw, err := base64.StdEncoding.DecodeString(msg.AudioData)
		if err != nil {
			slog.Warn("bad audio chunk", "err", err)
			return
		}
		s.player.Feed(raw)
		if !s.Paused {
			_ = s.RequestChunk(msg.ChunkIndex + 1)
		}
	case protocol.TypeStreamPaused:
		s.player.Pause()
	case protocol.TypeStreamResumed:
		s.player.Resume()
		_ = s.RequestChunk(chunkIndexForPosition(msg.Position))
	case protocol.TypeStreamSeeked:
		_ = s.RequestChunk(chunkIndexForPosition(msg.Position))
	}
}
