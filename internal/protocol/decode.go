package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeIntent parses one client frame. Only the shape is checked here; code
// format and dice range are the engine's call.
func DecodeIntent(data []byte) (Intent, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	typ, ok := intentAliases[strings.TrimSpace(frame.Type)]
	if !ok {
		return Intent{}, fmt.Errorf("%w: %q", ErrUnknownIntent, frame.Type)
	}

	var p intentPayload
	if raw := bytes.TrimSpace(frame.Payload); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &p); err != nil {
			return Intent{}, fmt.Errorf("%w: %s payload: %v", ErrMalformedMessage, typ, err)
		}
	}

	intent := Intent{Type: typ}
	switch typ {
	case IntentCreateSession:
		return intent, nil
	case IntentJoinSession:
		intent.Code = p.code()
	case IntentRollDice:
		intent.Code = p.code()
		intent.DiceValue = p.DiceValue
	}
	if strings.TrimSpace(intent.Code) == "" {
		return Intent{}, fmt.Errorf("%w: %s missing code", ErrMalformedMessage, typ)
	}
	return intent, nil
}

// DecodeFrame parses one server frame, leaving the payload raw.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return frame, nil
}
