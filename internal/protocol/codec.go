package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errors
var (
	ErrEmptyFrame   = errors.New("empty frame")
	ErrNotObject    = errors.New("root is not an object")
	ErrUnknownType  = errors.New("unknown frame type")
	ErrMissingField = errors.New("missing field")
	ErrWrongType    = errors.New("wrong field type")
	ErrInvalidJSON  = errors.New("invalid json")
	ErrNotARequest  = errors.New("not a request frame")
)

// DecodeError describes a frame that could not be decoded.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewNonce returns a fresh correlation token.
func NewNonce() string {
	return uuid.NewString()
}

// NewListen builds a LISTEN request with a fresh nonce.
// authToken may be empty for topics that do not require authentication.
func NewListen(topics []Topic, authToken string) Request {
	return Request{
		Type:  TypeListen,
		Nonce: NewNonce(),
		Data: &RequestData{
			Topics:    append([]Topic(nil), topics...),
			AuthToken: authToken,
		},
	}
}

// NewUnlisten builds an UNLISTEN request with a fresh nonce.
func NewUnlisten(topics []Topic) Request {
	return Request{
		Type:  TypeUnlisten,
		Nonce: NewNonce(),
		Data: &RequestData{
			Topics: append([]Topic(nil), topics...),
		},
	}
}

// NewPing builds a PING request.
func NewPing() Request {
	return Request{Type: TypePing}
}

// Encode serializes the request for the wire.
func (r Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Type, err)
	}
	return data, nil
}

// Decode parses an incoming frame.
func Decode(raw []byte) (Frame, error) {
	root, err := decodeObject(raw)
	if err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}

	typ, err := stringField(root, "type", true)
	if err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}

	switch typ {
	case TypePong:
		return &Pong{}, nil

	case TypeReconnect:
		return &Reconnect{}, nil

	case TypeResponse:
		nonce, err := stringField(root, "nonce", false)
		if err != nil {
			return nil, &DecodeError{Raw: raw, Err: err}
		}
		errText, err := stringField(root, "error", false)
		if err != nil {
			return nil, &DecodeError{Raw: raw, Err: err}
		}
		return &Response{Nonce: nonce, Error: errText}, nil

	case TypeMessage:
		dataRaw, ok := root["data"]
		if !ok {
			return nil, &DecodeError{Raw: raw, Err: fmt.Errorf("%w: data", ErrMissingField)}
		}
		data, err := decodeObject(dataRaw)
		if err != nil {
			return nil, &DecodeError{Raw: raw, Err: fmt.Errorf("data: %w", err)}
		}
		topic, err := stringField(data, "topic", true)
		if err != nil {
			return nil, &DecodeError{Raw: raw, Err: err}
		}
		if topic == "" {
			return nil, &DecodeError{Raw: raw, Err: fmt.Errorf("%w: topic", ErrMissingField)}
		}
		payload, err := stringField(data, "message", true)
		if err != nil {
			return nil, &DecodeError{Raw: raw, Err: err}
		}
		return &Message{Topic: Topic(topic), Payload: payload}, nil
	}

	return nil, &DecodeError{Raw: raw, Err: fmt.Errorf("%w: %q", ErrUnknownType, typ)}
}

// DecodeRequest parses an outgoing frame. Used by servers and tests.
func DecodeRequest(raw []byte) (Request, error) {
	if _, err := decodeObject(raw); err != nil {
		return Request{}, &DecodeError{Raw: raw, Err: err}
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, &DecodeError{Raw: raw, Err: fmt.Errorf("%w: %v", ErrWrongType, err)}
	}

	switch req.Type {
	case TypeListen, TypeUnlisten, TypePing:
		return req, nil
	}
	return Request{}, &DecodeError{Raw: raw, Err: fmt.Errorf("%w: %q", ErrNotARequest, req.Type)}
}

// decodeObject parses raw as a JSON object, keeping member values undecoded.
func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrEmptyFrame
	}
	if !json.Valid(trimmed) {
		return nil, ErrInvalidJSON
	}
	if trimmed[0] != '{' {
		return nil, ErrNotObject
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, ErrNotObject
	}
	return obj, nil
}

// stringField extracts a string member. Absent optional members yield "".
func stringField(obj map[string]json.RawMessage, key string, required bool) (string, error) {
	raw, ok := obj[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%w: %s", ErrMissingField, key)
		}
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s", ErrWrongType, key)
	}
	return s, nil
}
