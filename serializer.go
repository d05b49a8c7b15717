package burrow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Serializer converts event payloads to and from their wire form.
// The store serializes staged events on commit and deserializes them
// again when a session or reader loads the stream.
type Serializer interface {
	// Serialize renders an event into bytes.
	Serialize(event interface{}) ([]byte, error)

	// Deserialize converts bytes back to an event value.
	// eventType selects the target Go type.
	Deserialize(data []byte, eventType string) (interface{}, error)
}

// typeTable maps event type names to their Go types. Guarded by mu so
// registration can race with concurrent session loads.
type typeTable struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
}

func (t *typeTable) put(name string, example interface{}) {
	rt := reflect.TypeOf(example)
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if name == "" {
		name = rt.Name()
	}
	t.mu.Lock()
	t.byName[name] = rt
	t.mu.Unlock()
}

func (t *typeTable) get(name string) (reflect.Type, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rt, ok := t.byName[name]
	return rt, ok
}

func (t *typeTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byName))
	for name := range t.byName {
		out = append(out, name)
	}
	return out
}

// JSONSerializer is the default Serializer. Events whose types were
// registered deserialize to concrete struct values; unregistered types
// fall back to a map[string]interface{}.
type JSONSerializer struct {
	table typeTable
}

// NewJSONSerializer creates a JSONSerializer with no registered types.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{table: typeTable{byName: make(map[string]reflect.Type)}}
}

// Register maps eventType to the Go type of example.
// The example should be a value (not a pointer) of the event type.
func (s *JSONSerializer) Register(eventType string, example interface{}) {
	s.table.put(eventType, example)
}

// RegisterAll registers events under their struct names.
func (s *JSONSerializer) RegisterAll(examples ...interface{}) {
	for _, example := range examples {
		s.table.put("", example)
	}
}

// Knows reports whether eventType has a registered Go type.
func (s *JSONSerializer) Knows(eventType string) bool {
	_, ok := s.table.get(eventType)
	return ok
}

// RegisteredTypes returns the names of all registered event types.
func (s *JSONSerializer) RegisteredTypes() []string {
	return s.table.names()
}

// Serialize marshals an event to JSON.
func (s *JSONSerializer) Serialize(event interface{}) ([]byte, error) {
	if event == nil {
		return nil, NewSerializationError("nil", "serialize", fmt.Errorf("event cannot be nil"))
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, NewSerializationError(reflect.TypeOf(event).Name(), "serialize", err)
	}
	return data, nil
}

// Deserialize converts JSON bytes back to an event. Registered types
// come back as struct values, everything else as a map.
func (s *JSONSerializer) Deserialize(data []byte, eventType string) (interface{}, error) {
	if len(data) == 0 {
		return nil, NewSerializationError(eventType, "deserialize", fmt.Errorf("data cannot be empty"))
	}

	rt, ok := s.table.get(eventType)
	if !ok {
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, NewSerializationError(eventType, "deserialize", err)
		}
		return m, nil
	}

	pv := reflect.New(rt)
	if err := json.Unmarshal(data, pv.Interface()); err != nil {
		return nil, NewSerializationError(eventType, "deserialize", err)
	}
	return pv.Elem().Interface(), nil
}

// GetEventType derives the event type name from the event's struct name.
func GetEventType(event interface{}) string {
	if event == nil {
		return ""
	}
	rt := reflect.TypeOf(event)
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt.Name()
}

// SerializeEvent serializes a single event into EventData ready to append.
func SerializeEvent(serializer Serializer, event interface{}, metadata Metadata) (EventData, error) {
	eventType := GetEventType(event)
	if eventType == "" {
		return EventData{}, NewSerializationError("", "serialize", fmt.Errorf("cannot determine event type"))
	}

	data, err := serializer.Serialize(event)
	if err != nil {
		return EventData{}, err
	}

	return EventData{Type: eventType, Data: data, Metadata: metadata}, nil
}

// DeserializeEvent decodes a StoredEvent's payload and returns the full Event.
func DeserializeEvent(serializer Serializer, stored StoredEvent) (Event, error) {
	data, err := serializer.Deserialize(stored.Data, stored.Type)
	if err != nil {
		return Event{}, err
	}
	return EventFromStored(stored, data), nil
}
