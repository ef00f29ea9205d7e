// Package msgpack wraps MessagePack encoding for continuation token
// payloads, keeping the error wording in one place.
package msgpack

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes a Go value into MessagePack bytes.
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode msgpack: %w", err)
	}
	return data, nil
}

// Decode deserializes MessagePack bytes into v, a pointer to the target
// structure.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty msgpack payload")
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode msgpack: %w", err)
	}
	return nil
}
