// Package room implements the room state machine (C4): participants,
// seats, host election, and the shared queue, each room owned by exactly
// one goroutine so its state never needs a mutex.
package room

import (
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"jamsync/internal/library"
	"jamsync/internal/protocol"
)

// SendTimeout bounds how long a broadcast may block on one slow client
// before giving up on it.
const SendTimeout = 50 * time.Millisecond

// SeatCount is the number of playback seats a room offers. Seat 0 is the
// host's seat; once every seat is taken, further joiners are also given
// seat 0.
const SeatCount = 4

// Participant is one connected member of a room.
type Participant struct {
	ID       string // session id, opaque to clients
	Username string
	ColorIdx int
	Seat     int // 0 for every joiner past SeatCount (room is at capacity)
	Send     chan *protocol.Message
}

// QueueEntry is one track slot in a room's queue.
type QueueEntry struct {
	Track *library.Track
}

// Room owns all state for one jam session. Every field below is read and
// written only from the goroutine running loop(); external callers
// interact exclusively through the command channel, via Submit and SubmitSync.
type Room struct {
	Code string

	participants []*Participant
	nextSeat     int // not read; nextFreeSeat picks the smallest free seat

	queue        []QueueEntry
	currentIndex int
	paused       bool
	position     float64 // seconds into the current track

	commands chan func(*Room)
	done     chan struct{}
}

// New creates a room with the given code and starts its event loop
// goroutine. Callers must call Close when the room is torn down.
func New(code string) *Room {
	r := &Room{
		Code:         code,
		currentIndex: -1,
		commands:     make(chan func(*Room), 64),
		done:         make(chan struct{}),
	}
	go r.loop()
	return r
}

// loop is the room's single event loop goroutine. Every mutation of room
// state happens here, serialized by the commands channel — no mutex is
// needed because nothing else ever touches these fields.
func (r *Room) loop() {
	defer close(r.done)
	for cmd := range r.commands {
		cmd(r)
	}
}

// Close stops the room's event loop. Safe to call once.
func (r *Room) Close() {
	close(r.commands)
	<-r.done
}

// Submit enqueues a command to run on the room's loop goroutine and blocks
// until it is accepted (not until it runs). Used for fire-and-forget
// mutations; use SubmitSync when the caller needs a result back.
func (r *Room) Submit(fn func(*Room)) {
	r.commands <- fn
}

// SubmitSync runs fn on the room's loop goroutine and waits for it to
// complete, returning whatever fn chooses to stash in the closure.
func (r *Room) SubmitSync(fn func(*Room)) {
	done := make(chan struct{})
	r.commands <- func(room *Room) {
		fn(room)
		close(done)
	}
	<-done
}

// --- participant management -------------------------------------------------

// AddParticipant assigns the smallest free seat (seat 0 is reused once the
// room is oversubscribed, per the tolerate-oversubscription decision) and
// appends the participant. Must run on the loop goroutine.
func (r *Room) AddParticipant(p *Participant) {
	p.Seat = r.nextFreeSeat()
	r.participants = append(r.participants, p)
	slog.Info("participant joined", "room", r.Code, "user", p.Username, "seat", p.Seat)
}

func (r *Room) nextFreeSeat() int {
	taken := make(map[int]bool, len(r.participants))
	for _, p := range r.participants {
		taken[p.Seat] = true
	}
	for s := 0; s < SeatCount; s++ {
		if !taken[s] {
			return s
		}
	}
	// Oversubscribed beyond SeatCount: reuse seat 0 rather than reject the
	// join outright.
	return 0
}

// RemoveParticipant drops the participant with id, promotes a new host if
// the departing participant held seat 0, and reports whether the room is
// now empty along with the departed participant's username. Must run on
// the loop goroutine.
func (r *Room) RemoveParticipant(id string) (departedUsername, newHostID string, hostChanged, empty bool) {
	idx := -1
	for i, p := range r.participants {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", "", false, len(r.participants) == 0
	}

	departedUsername = r.participants[idx].Username
	wasHost := r.participants[idx].Seat == 0
	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)

	if len(r.participants) == 0 {
		return departedUsername, "", false, true
	}

	if wasHost {
		// Promote the remaining participant who joined earliest — the
		// front of the slice, since participants are appended in join
		// order — to seat 0.
		r.participants[0].Seat = 0
		return departedUsername, r.participants[0].ID, true, false
	}
	return departedUsername, "", false, false
}

// Participants returns a snapshot of current participants.
func (r *Room) Participants() []*Participant {
	out := make([]*Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// IsEmpty reports whether the room has no participants left.
func (r *Room) IsEmpty() bool {
	return len(r.participants) == 0
}

// --- queue management --------------------------------------------------------

// EnqueueTrack appends a track to the queue.
func (r *Room) EnqueueTrack(t *library.Track) {
	r.queue = append(r.queue, QueueEntry{Track: t})
}

// Queue returns a snapshot of the queue.
func (r *Room) Queue() []QueueEntry {
	out := make([]QueueEntry, len(r.queue))
	copy(out, r.queue)
	return out
}

// CurrentIndex returns the queue position currently playing.
func (r *Room) CurrentIndex() int {
	return r.currentIndex
}

// SetCurrentIndex updates the playing position, clamped to the queue bounds.
func (r *Room) SetCurrentIndex(idx int) {
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.queue) && len(r.queue) > 0 {
		idx = len(r.queue) - 1
	}
	r.currentIndex = idx
}

// ShuffleQueue reorders every entry strictly after currentIndex, leaving
// the currently-playing entry and everything before it untouched.
func (r *Room) ShuffleQueue() {
	if r.currentIndex+1 >= len(r.queue) {
		return
	}
	tail := r.queue[r.currentIndex+1:]
	rand.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
}

// RemoveFromQueue deletes the entry at idx. If idx is before currentIndex,
// currentIndex shifts down by one to keep pointing at the same track; if
// idx equals currentIndex, currentIndex is left as-is so it now points at
// what was the next track, or at the new last entry when the removed entry
// was the last one. An emptied queue sets currentIndex to -1.
func (r *Room) RemoveFromQueue(idx int) bool {
	if idx < 0 || idx >= len(r.queue) {
		return false
	}
	r.queue = append(r.queue[:idx], r.queue[idx+1:]...)
	if idx < r.currentIndex {
		r.currentIndex--
	}
	if r.currentIndex >= len(r.queue) && len(r.queue) > 0 {
		r.currentIndex = len(r.queue) - 1
	}
	if len(r.queue) == 0 {
		r.currentIndex = -1
	}
	return true
}

// --- playback state -----------------------------------------------------------

// Paused reports whether playback is currently paused.
func (r *Room) Paused() bool { return r.paused }

// SetPaused sets the paused flag.
func (r *Room) SetPaused(p bool) { r.paused = p }

// Position returns the current playback position in seconds.
func (r *Room) Position() float64 { return r.position }

// SetPosition sets the current playback position in seconds.
func (r *Room) SetPosition(sec float64) { r.position = sec }

// --- broadcast ----------------------------------------------------------------

// Broadcast sends msg to every participant except excludeID (pass "" to
// exclude no one). Slow clients are dropped rather than allowed to stall
// the room loop.
func (r *Room) Broadcast(msg *protocol.Message, excludeID string) {
	sent := 0
	for _, p := range r.participants {
		if excludeID != "" && p.ID == excludeID {
			continue
		}
		if trySend(p.Send, msg) {
			sent++
		}
	}
	slog.Debug("room broadcast", "room", r.Code, "type", msg.Type, "recipients", sent)
}

// SendTo delivers msg to exactly one participant by id.
func (r *Room) SendTo(id string, msg *protocol.Message) bool {
	for _, p := range r.participants {
		if p.ID == id {
			return trySend(p.Send, msg)
		}
	}
	return false
}

func trySend(ch chan *protocol.Message, msg *protocol.Message) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case ch <- msg:
		return true
	case <-time.After(SendTimeout):
		slog.Debug("room trySend timeout", "type", msg.Type)
		return false
	}
}

// GenerateCode returns a random 6-character uppercase room code, drawn
// uniformly from [A-Z0-9]. Collision checking against existing rooms is the
// Registry's responsibility.
func GenerateCode() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}
	return b.String()
}
