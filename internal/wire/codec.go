package wire

import "github.com/goccy/go-json"

// Marshal/Unmarshal go through goccy/go-json rather than encoding/json: the
// wire path is the highest-frequency JSON traffic in the engine (every
// progress frame from every connected extension), and goccy/go-json is a
// drop-in faster encoder, the same choice tomtom215-cartographus makes for
// its own WebSocket hub.

// Marshal encodes v as JSON.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// DecodeData re-decodes a Frame's loosely-typed Data map into a concrete
// struct with a marshal-then-unmarshal round trip.
func DecodeData[T any](data map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(data)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
