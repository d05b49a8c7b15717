// Package msgpack provides a MessagePack serializer for burrow.
//
// MessagePack produces smaller payloads than JSON, which matters when an
// issue log grows into millions of events. Plug it into a store with
// burrow.WithSerializer:
//
//	store := burrow.New(adapter, burrow.WithSerializer(msgpack.NewSerializer()))
//	store.RegisterEvents(issue.Events()...)
package msgpack

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer implements burrow.Serializer using MessagePack encoding.
// Registered event types decode to concrete struct values; anything
// else decodes to a map[string]interface{}.
type Serializer struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
}

// NewSerializer creates a Serializer with no registered types.
func NewSerializer() *Serializer {
	return &Serializer{byName: make(map[string]reflect.Type)}
}

func structType(example interface{}) reflect.Type {
	rt := reflect.TypeOf(example)
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt
}

// Register maps eventType to the Go type of example.
func (s *Serializer) Register(eventType string, example interface{}) {
	s.mu.Lock()
	s.byName[eventType] = structType(example)
	s.mu.Unlock()
}

// RegisterAll registers events under their struct names.
func (s *Serializer) RegisterAll(examples ...interface{}) {
	s.mu.Lock()
	for _, example := range examples {
		rt := structType(example)
		s.byName[rt.Name()] = rt
	}
	s.mu.Unlock()
}

// Knows reports whether eventType has a registered Go type.
func (s *Serializer) Knows(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byName[eventType]
	return ok
}

// RegisteredTypes returns the names of all registered event types.
func (s *Serializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		out = append(out, name)
	}
	return out
}

// Serialize converts an event to MessagePack bytes.
func (s *Serializer) Serialize(event interface{}) ([]byte, error) {
	if event == nil {
		return nil, newError("nil", "serialize", fmt.Errorf("event cannot be nil"))
	}

	b, err := msgpack.Marshal(event)
	if err != nil {
		return nil, newError(reflect.TypeOf(event).Name(), "serialize", err)
	}
	return b, nil
}

// Deserialize converts MessagePack bytes back to an event value.
func (s *Serializer) Deserialize(data []byte, eventType string) (interface{}, error) {
	if len(data) == 0 {
		return nil, newError(eventType, "deserialize", fmt.Errorf("data cannot be empty"))
	}

	s.mu.RLock()
	rt, ok := s.byName[eventType]
	s.mu.RUnlock()
	if !ok {
		var m map[string]interface{}
		if err := msgpack.Unmarshal(data, &m); err != nil {
			return nil, newError(eventType, "deserialize", err)
		}
		return m, nil
	}

	pv := reflect.New(rt)
	if err := msgpack.Unmarshal(data, pv.Interface()); err != nil {
		return nil, newError(eventType, "deserialize", err)
	}
	return pv.Elem().Interface(), nil
}

// SerializationError reports a failed serialize or deserialize.
type SerializationError struct {
	EventType string
	Operation string
	Err       error
}

func newError(eventType, op string, err error) *SerializationError {
	return &SerializationError{EventType: eventType, Operation: op, Err: err}
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("burrow/msgpack: failed to %s event %s: %v", e.Operation, e.EventType, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
