package client

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hajimehoshi/oto/v2"
)

// Player drives the local audio output device, fed chunk-by-chunk from
// inbound audio_chunk events. Reset rebuilds the oto player and its pipe
// for every track; the oto context is created once, at the sample rate and
// channel count given to NewPlayer, and reused across tracks.
type Player struct {
	sampleRate int
	channels   int

	mu          sync.Mutex
	ctx         *oto.Context
	player      oto.Player
	pipeWriter  *io.PipeWriter
	pipeReader  *io.PipeReader
	totalChunks int
	paused      bool
}

// NewPlayer returns a Player configured for the canonical PCM format.
func NewPlayer(sampleRate, channels int) *Player {
	return &Player{sampleRate: sampleRate, channels: channels}
}

// Reset tears down any in-flight stream and starts a fresh one for a newly
// started track with totalChunks chunks expected.
func (p *Player) Reset(totalChunks int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()
	p.totalChunks = totalChunks
	p.paused = false

	if p.ctx == nil {
		ctx, ready, err := oto.NewContext(p.sampleRate, p.channels, 2)
		if err != nil {
			slog.Warn("open audio output device failed", "err", err)
			return
		}
		<-ready
		p.ctx = ctx
	}

	pr, pw := io.Pipe()
	p.pipeReader, p.pipeWriter = pr, pw
	p.player = p.ctx.NewPlayer(pr)
	p.player.Play()
}

func (p *Player) closeLocked() {
	if p.player != nil {
		_ = p.player.Close()
		p.player = nil
	}
	if p.pipeWriter != nil {
		_ = p.pipeWriter.Close()
		p.pipeWriter = nil
	}
}

// Feed writes one decoded PCM chunk to the output stream. Reopens the
// output device on the next Reset if a previous write failed, per the
// output-device-failure handling contract: log and recover on the next
// stream event rather than crash the session.
func (p *Player) Feed(pcm []byte) {
	p.mu.Lock()
	w := p.pipeWriter
	paused := p.paused
	p.mu.Unlock()

	if w == nil || paused {
		return
	}
	if _, err := w.Write(pcm); err != nil {
		slog.Warn("audio output write failed", "err", err)
	}
}

// Pause stops playback without discarding the stream; Feed calls are
// dropped until Resume.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	if p.player != nil {
		p.player.Pause()
	}
}

// Resume continues playback after Pause.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	if p.player != nil {
		p.player.Play()
	}
}

// Close tears down the player and its output device entirely.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	if p.ctx != nil {
		// oto.Context has no explicit Close in v2; dropping the reference
		// lets the device be reclaimed once the process no longer holds it.
		p.ctx = nil
	}
	return nil
}

// String reports basic player status, useful for debug logging.
func (p *Player) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("Player(rate=%d channels=%d totalChunks=%d paused=%v)", p.sampleRate, p.channels, p.totalChunks, p.paused)
}
