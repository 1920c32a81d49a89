package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Centrifuge JSON protocol v2 frames. A frame may carry several
// newline-delimited messages; an empty object is a server ping.

type command struct {
	ID          uint32          `json:"id"`
	Connect     *connectRequest `json:"connect,omitempty"`
	Subscribe   *channelRequest `json:"subscribe,omitempty"`
	Unsubscribe *channelRequest `json:"unsubscribe,omitempty"`
}

type connectRequest struct {
	Token string `json:"token,omitempty"`
	Name  string `json:"name,omitempty"`
}

type channelRequest struct {
	Channel string `json:"channel"`
}

type reply struct {
	ID        uint32          `json:"id,omitempty"`
	Error     *ReplyError     `json:"error,omitempty"`
	Push      *push           `json:"push,omitempty"`
	Connect   json.RawMessage `json:"connect,omitempty"`
	Subscribe json.RawMessage `json:"subscribe,omitempty"`
}

func (r *reply) isPing() bool {
	return r.ID == 0 && r.Error == nil && r.Push == nil && r.Connect == nil && r.Subscribe == nil
}

type push struct {
	Channel    string          `json:"channel"`
	Pub        *publication    `json:"pub,omitempty"`
	Disconnect *disconnectPush `json:"disconnect,omitempty"`
}

type publication struct {
	Data json.RawMessage `json:"data"`
}

type disconnectPush struct {
	Code   uint32 `json:"code"`
	Reason string `json:"reason"`
}

// ReplyError is an error returned by the server for a command.
type ReplyError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("centrifuge error %d: %s", e.Code, e.Message)
}

// pongFrame answers a server ping.
var pongFrame = []byte("{}")

// decodeFrame splits a frame into replies. Undecodable lines are returned as errors
// alongside the replies that did decode.
func decodeFrame(frame []byte) ([]reply, []error) {
	var (
		replies []reply
		errs    []error
	)
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var r reply
		if err := json.Unmarshal(line, &r); err != nil {
			errs = append(errs, fmt.Errorf("decode reply: %w", err))
			continue
		}
		replies = append(replies, r)
	}
	return replies, errs
}
