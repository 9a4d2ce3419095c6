package syncbus

import "encoding/base64"

// encodeChunk base64-encodes binary audio data for transport inside a JSON
// text frame.
func encodeChunk(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// decodeChunk reverses encodeChunk.
func decodeChunk(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
