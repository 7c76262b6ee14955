package ws

import (
	"errors"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// ErrMalformedFrame marks an inbound frame that could not be parsed. The
// frame is dropped; the connection stays open.
var ErrMalformedFrame = errors.New("malformed frame")

// frame is one parsed inbound chat frame.
type frame struct {
	To      string
	Content string
}

// parseFrame extracts the recipient identity and the text content from an
// inbound frame. Binary and text websocket frames are both accepted and land
// here as raw bytes; content is normalized to a UTF-8 string before
// persistence.
func parseFrame(data []byte) (frame, error) {
	if !utf8.Valid(data) || !gjson.ValidBytes(data) {
		return frame{}, ErrMalformedFrame
	}

	to := gjson.GetBytes(data, "to")
	msg := gjson.GetBytes(data, "message")
	if to.Type != gjson.String || to.Str == "" {
		return frame{}, ErrMalformedFrame
	}
	if msg.Type != gjson.String {
		return frame{}, ErrMalformedFrame
	}

	return frame{To: to.Str, Content: msg.Str}, nil
}
