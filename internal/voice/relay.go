// Package voice implements the voice relay (C7): pure passthrough of voice
// audio frames and talking-state flags between room participants. No audio
// processing happens here — activity detection and codec work are entirely
// client-side; the server only forwards bytes and a boolean.
package voice

import "jamsync/internal/protocol"

// TalkingStateMessage builds the broadcast for a talking-state change.
func TalkingStateMessage(username string, isTalking bool) *protocol.Message {
	return &protocol.Message{
		Type:      protocol.TypeUserTalkingUpdate,
		Username:  username,
		IsTalking: isTalking,
	}
}

// VoiceFrameMessage builds the broadcast for one relayed voice frame.
func VoiceFrameMessage(username string, frame []byte) *protocol.Message {
	return &protocol.Message{
		Type:     protocol.TypeVoiceData,
		Username: username,
		Voice:    frame,
	}
}
