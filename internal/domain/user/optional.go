package user

import (
	"bytes"
	"encoding/json"
)

type presence uint8

const (
	absent presence = iota
	null
	present
)

// Optional is a patch field that knows whether it was sent at all, sent as
// null, or sent with a value. The zero value is absent.
type Optional[T any] struct {
	value T
	state presence
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, state: present}
}

func Null[T any]() Optional[T] {
	return Optional[T]{state: null}
}

// Get returns the value and true only when a non-null value was provided.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == present
}

func (o Optional[T]) IsSet() bool  { return o.state != absent }
func (o Optional[T]) IsNull() bool { return o.state == null }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		o.value, o.state = zero, null
		return nil
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.value, o.state = v, present
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.state != present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
