package websocket

import (
	"chat-relay/domain/event"
	"encoding/json"
	"fmt"
)

// Frame is the JSON envelope exchanged in both directions: {"event": "...", "data": {...}}.
type Frame struct {
	Event event.Name      `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(e event.Outbound) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventName(), err)
	}
	return json.Marshal(Frame{Event: e.EventName(), Data: data})
}

func decodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}
