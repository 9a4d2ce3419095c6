package syncbus

import (
	"context"
	"log/slog"

	"jamsync/internal/acquisition"
	"jamsync/internal/library"
	"jamsync/internal/protocol"
	"jamsync/internal/room"
	"jamsync/internal/streaming"
	"jamsync/internal/voice"
)

func (h *Handler) handleInbound(ctx context.Context, sess *session, in *protocol.Message) {
	switch in.Type {
	case protocol.TypeCreateRoom:
		h.handleCreateRoom(sess, in)

	case protocol.TypeJoinRoom:
		h.handleJoinRoom(sess, in)

	case protocol.TypeAddURLToQueue:
		h.handleAddURLToQueue(ctx, sess, in)

	case protocol.TypePlaySong:
		h.handlePlaySong(sess, in)

	case protocol.TypePauseStream:
		h.handlePauseStream(sess, in)

	case protocol.TypeResumeStream:
		h.handleResumeStream(sess, in)

	case protocol.TypeSeekStream:
		h.handleSeekStream(sess, in)

	case protocol.TypeRequestChunk:
		h.handleRequestChunk(sess, in)

	case protocol.TypeShuffleQueue:
		h.handleShuffleQueue(sess)

	case protocol.TypeRemoveFromQueue:
		h.handleRemoveFromQueue(sess, in)

	case protocol.TypeUserTalkingState:
		h.handleUserTalkingState(sess, in)

	case protocol.TypeVoiceData:
		h.handleVoiceData(sess, in)

	default:
		slog.Debug("ws unknown message type", "session", sess.id, "type", in.Type)
	}
}

func (h *Handler) handleCreateRoom(sess *session, in *protocol.Message) {
	r := h.rooms.Create()
	sess.room = r
	sess.roomCode = r.Code

	r.SubmitSync(func(room *room.Room) {
		p := roomParticipant(sess, in)
		room.AddParticipant(&p)
		h.warnIfOversubscribed(room)
	})

	sess.send <- &protocol.Message{Type: protocol.TypeRoomCreated, RoomCode: r.Code}
	if h.auditStore != nil {
		_ = h.auditStore.RecordRoomEvent(context.Background(), r.Code, "room_created", sess.id, in.Username)
	}
}

func (h *Handler) handleJoinRoom(sess *session, in *protocol.Message) {
	r := h.rooms.Get(in.RoomCode)
	if r == nil {
		h.sendError(sess, "room not found")
		return
	}
	sess.room = r
	sess.roomCode = r.Code

	var seat int
	var players []protocol.PlayerInfo
	var queue []protocol.Track
	var currentIdx int
	r.SubmitSync(func(room *room.Room) {
		p := roomParticipant(sess, in)
		room.AddParticipant(&p)
		seat = p.Seat
		h.warnIfOversubscribed(room)
		players = playersSnapshot(room)
		queue = toWireQueue(room.Queue())
		currentIdx = room.CurrentIndex()
	})

	sess.send <- &protocol.Message{Type: protocol.TypeRoomJoined, RoomCode: r.Code, Players: players}
	sess.send <- &protocol.Message{Type: protocol.TypeQueueUpdated, Queue: queue, CurrentIdx: currentIdx}

	r.Submit(func(room *room.Room) {
		room.Broadcast(&protocol.Message{
			Type:        protocol.TypeUserJoined,
			Username:    in.Username,
			ColorIdx:    in.ColorIdx,
			PositionIdx: seat,
		}, sess.id)
		room.Broadcast(&protocol.Message{Type: protocol.TypePlayersUpdated, Players: playersSnapshot(room)}, "")
	})
}

func roomParticipant(sess *session, in *protocol.Message) room.Participant {
	return room.Participant{ID: sess.id, Username: in.Username, ColorIdx: in.ColorIdx, Send: sess.send}
}

// warnIfOversubscribed logs once a room's participant count passes the
// configured soft cap. Must be called from inside a Submit/SubmitSync
// closure, since it reads Room.Participants(). It never rejects a joiner —
// oversubscription past the four rendered seats is tolerated by design.
func (h *Handler) warnIfOversubscribed(room *room.Room) {
	if h.maxParticipants <= 0 {
		return
	}
	if n := len(room.Participants()); n > h.maxParticipants {
		slog.Warn("room exceeded configured participant soft cap", "room", room.Code, "participants", n, "max", h.maxParticipants)
	}
}

func (h *Handler) handleAddURLToQueue(ctx context.Context, sess *session, in *protocol.Message) {
	if sess.room == nil {
		h.sendError(sess, "not in a room")
		return
	}
	r := sess.room
	r.Submit(func(room *room.Room) {
		room.SendTo(sess.id, &protocol.Message{Type: protocol.TypeURLProcessing, URL: in.URL})
	})

	go func() {
		result := h.acquirer.Acquire(ctx, in.URL)
		if result.Outcome != acquisition.Success {
			r.Submit(func(room *room.Room) {
				room.SendTo(sess.id, &protocol.Message{
					Type:   protocol.TypeURLProcessed,
					Status: protocol.StatusError,
					URL:    in.URL,
					Error:  result.Detail,
				})
			})
			return
		}

		r.Submit(func(room *room.Room) {
			room.EnqueueTrack(result.Track)
			room.Broadcast(&protocol.Message{
				Type:       protocol.TypeQueueUpdated,
				Queue:      toWireQueue(room.Queue()),
				CurrentIdx: room.CurrentIndex(),
				UpdatedBy:  sess.id,
			}, "")
			room.SendTo(sess.id, &protocol.Message{
				Type:   protocol.TypeURLProcessed,
				Status: protocol.StatusSuccess,
				Song:   toWireTrack(result.Track, true),
			})
		})
	}()
}

func (h *Handler) handlePlaySong(sess *session, in *protocol.Message) {
	if sess.room == nil {
		return
	}
	r := sess.room
	r.Submit(func(room *room.Room) {
		queue := room.Queue()
		if in.SongIndex < 0 || in.SongIndex >= len(queue) {
			slog.Warn("play_song index out of range", "room", room.Code, "index", in.SongIndex, "queue_len", len(queue))
			return
		}
		track := queue[in.SongIndex].Track

		buf, err := h.engine.Load(context.Background(), track.FilePath)
		if err != nil {
			slog.Warn("decode failed", "room", room.Code, "file", track.FilePath, "err", err)
			room.SendTo(sess.id, &protocol.Message{Type: protocol.TypeError, Error: "could not decode track"})
			return
		}

		room.SetCurrentIndex(in.SongIndex)
		room.SetPaused(false)
		room.SetPosition(0)

		room.Broadcast(&protocol.Message{
			Type:      protocol.TypeSongStarted,
			Song:      toWireTrack(track, true),
			SongIndex: in.SongIndex,
		}, "")
		room.Broadcast(&protocol.Message{
			Type:        protocol.TypeAudioStreamReady,
			Song:        toWireTrack(track, true),
			TotalChunks: buf.ChunkCount(h.chunkSize),
		}, "")
		room.Broadcast(&protocol.Message{
			Type:       protocol.TypeCurrentIndexSynced,
			RoomCode:   room.Code,
			CurrentIdx: in.SongIndex,
			UpdatedBy:  sess.id,
		}, "")
	})
}

func (h *Handler) handlePauseStream(sess *session, in *protocol.Message) {
	if sess.room == nil {
		return
	}
	sess.room.Submit(func(room *room.Room) {
		room.SetPaused(true)
		room.SetPosition(in.Position)
		room.Broadcast(&protocol.Message{Type: protocol.TypeStreamPaused, SongIndex: in.SongIndex, Position: in.Position}, "")
	})
}

func (h *Handler) handleResumeStream(sess *session, in *protocol.Message) {
	if sess.room == nil {
		return
	}
	sess.room.Submit(func(room *room.Room) {
		room.SetPaused(false)
		room.SetPosition(in.Position)
		room.Broadcast(&protocol.Message{Type: protocol.TypeStreamResumed, SongIndex: in.SongIndex, Position: in.Position}, "")
	})
}

func (h *Handler) handleSeekStream(sess *session, in *protocol.Message) {
	if sess.room == nil {
		return
	}
	sess.room.Submit(func(room *room.Room) {
		room.SetPosition(in.Position)
		chunkIdx := streaming.SampleIndexForSeconds(int(in.Position), h.sampleRate, h.chunkSize)
		room.Broadcast(&protocol.Message{Type: protocol.TypeStreamSeeked, Position: in.Position, ChunkIndex: chunkIdx}, "")
	})
}

func (h *Handler) handleRequestChunk(sess *session, in *protocol.Message) {
	if sess.room == nil {
		return
	}
	r := sess.room
	r.Submit(func(room *room.Room) {
		if room.Paused() {
			return
		}
		queue := room.Queue()
		idx := room.CurrentIndex()
		if idx < 0 || idx >= len(queue) {
			return
		}
		track := queue[idx].Track

		buf, err := h.engine.Load(context.Background(), track.FilePath)
		if err != nil {
			return
		}
		chunk := buf.Chunk(h.chunkSize, in.ChunkIndex)
		if chunk == nil {
			return
		}
		sess.send <- &protocol.Message{
			Type:       protocol.TypeAudioChunk,
			ChunkIndex: in.ChunkIndex,
			AudioData:  encodeChunk(chunk),
		}
	})
}

func (h *Handler) handleShuffleQueue(sess *session) {
	if sess.room == nil {
		return
	}
	sess.room.Submit(func(room *room.Room) {
		room.ShuffleQueue()
		room.Broadcast(&protocol.Message{
			Type:       protocol.TypeQueueUpdated,
			Queue:      toWireQueue(room.Queue()),
			CurrentIdx: room.CurrentIndex(),
		}, "")
	})
}

func (h *Handler) handleRemoveFromQueue(sess *session, in *protocol.Message) {
	if sess.room == nil {
		return
	}
	sess.room.Submit(func(room *room.Room) {
		if !room.RemoveFromQueue(in.RemoveIndex) {
			return
		}
		room.Broadcast(&protocol.Message{
			Type:       protocol.TypeQueueUpdated,
			Queue:      toWireQueue(room.Queue()),
			CurrentIdx: room.CurrentIndex(),
		}, "")
	})
}

func (h *Handler) handleUserTalkingState(sess *session, in *protocol.Message) {
	if sess.room == nil {
		return
	}
	sess.room.Submit(func(room *room.Room) {
		room.Broadcast(voice.TalkingStateMessage(in.Username, in.IsTalking), sess.id)
	})
}

func (h *Handler) handleVoiceData(sess *session, in *protocol.Message) {
	if sess.room == nil {
		return
	}
	sess.room.Submit(func(room *room.Room) {
		room.Broadcast(voice.VoiceFrameMessage(in.Username, in.Voice), sess.id)
	})
}

func toWireTrack(t *library.Track, withCover bool) *protocol.Track {
	if t == nil {
		return nil
	}
	wt := &protocol.Track{
		SongID:        t.SongID,
		Title:         t.Title,
		Name:          t.Title,
		Artist:        t.Artist,
		Album:         t.Album,
		LengthSec:     t.LengthSec,
		URL:           t.URL,
		HasCoverImage: len(t.CoverImage) > 0,
	}
	if withCover && len(t.CoverImage) > 0 {
		wt.CoverImage = encodeChunk(t.CoverImage)
	}
	return wt
}

func toWireQueue(entries []room.QueueEntry) []protocol.Track {
	out := make([]protocol.Track, 0, len(entries))
	for _, e := range entries {
		out = append(out, *toWireTrack(e.Track, false))
	}
	return out
}
