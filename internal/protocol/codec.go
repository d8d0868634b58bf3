package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidStart is returned when a Start message lacks the field its
// source requires.
var ErrInvalidStart = errors.New("invalid start message")

// ProtocolError reports an inbound payload that could not be turned into an
// Inbound message. Type is the offending tag, if one was readable.
type ProtocolError struct {
	Type   string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "protocol: " + e.Reason
	if e.Type != "" {
		msg += fmt.Sprintf(" (type %q)", e.Type)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// envelope is the union of all inbound fields.
type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Video     string          `json:"video,omitempty"`
}

// Decode parses one inbound text frame. Any failure is a *ProtocolError.
func Decode(payload []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &ProtocolError{Reason: "unparseable payload", Err: err}
	}

	switch env.Type {
	case TypeStarted:
		return Started{SessionID: env.SessionID, Video: env.Video}, nil
	case TypeFrame:
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return nil, &ProtocolError{Type: env.Type, Reason: "frame without data"}
		}
		var data FrameUpdate
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &ProtocolError{Type: env.Type, Reason: "bad frame data", Err: err}
		}
		return Frame{Data: data}, nil
	case TypeComplete:
		return Complete{SessionID: env.SessionID}, nil
	case TypeStopped:
		return Stopped{SessionID: env.SessionID}, nil
	case TypeError:
		return ServerError{Message: env.Message}, nil
	case "":
		return nil, &ProtocolError{Reason: "missing type tag"}
	default:
		return nil, &ProtocolError{Type: env.Type, Reason: "unknown type tag"}
	}
}

type startWire struct {
	Type   string `json:"type"`
	Source Source `json:"source"`
	ID     string `json:"id,omitempty"`
	Path   string `json:"path,omitempty"`
}

type stopWire struct {
	Type string `json:"type"`
}

// Validate checks that the source-specific field is present.
func (s Start) Validate() error {
	switch s.Source {
	case SourceDemo:
		if s.ID == "" {
			return fmt.Errorf("%w: demo source requires an id", ErrInvalidStart)
		}
	case SourceUpload:
		if s.Path == "" {
			return fmt.Errorf("%w: upload source requires a path", ErrInvalidStart)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidStart, s.Source)
	}
	return nil
}

// Encode serialises an outbound message. Only the field matching the start
// source is written.
func Encode(msg Outbound) ([]byte, error) {
	switch m := msg.(type) {
	case Start:
		if err := m.Validate(); err != nil {
			return nil, err
		}
		w := startWire{Type: TypeStart, Source: m.Source}
		if m.Source == SourceDemo {
			w.ID = m.ID
		} else {
			w.Path = m.Path
		}
		return json.Marshal(w)
	case Stop:
		return json.Marshal(stopWire{Type: TypeStop})
	default:
		return nil, fmt.Errorf("protocol: unsupported outbound message %T", msg)
	}
}
