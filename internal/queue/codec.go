package queue

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts message payloads to and from their wire representation.
type Codec[T any] interface {
	Encode(msg T) ([]byte, error)
	Decode(data []byte) (T, error)

	// ContentType is the MIME type of the encoded form.
	ContentType() string
}

// StringCodec carries strings as UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) Encode(msg string) ([]byte, error) {
	if !utf8.ValidString(msg) {
		return nil, fmt.Errorf("message is not valid UTF-8")
	}
	return []byte(msg), nil
}

func (StringCodec) Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("payload is not valid UTF-8")
	}
	return string(data), nil
}

func (StringCodec) ContentType() string { return "text/plain; charset=utf-8" }

// BytesCodec passes raw bytes through.
type BytesCodec struct{}

func (BytesCodec) Encode(msg []byte) ([]byte, error) { return msg, nil }

func (BytesCodec) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (BytesCodec) ContentType() string { return "application/octet-stream" }

// JSONCodec encodes T with encoding/json.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(msg T) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json: %w", err)
	}
	return data, nil
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to unmarshal json: %w", err)
	}
	return msg, nil
}

func (JSONCodec[T]) ContentType() string { return "application/json" }

// MsgpackCodec encodes T with MessagePack.
type MsgpackCodec[T any] struct{}

func (MsgpackCodec[T]) Encode(msg T) ([]byte, error) {
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal msgpack: %w", err)
	}
	return data, nil
}

func (MsgpackCodec[T]) Decode(data []byte) (T, error) {
	var msg T
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to unmarshal msgpack: %w", err)
	}
	return msg, nil
}

func (MsgpackCodec[T]) ContentType() string { return "application/msgpack" }
