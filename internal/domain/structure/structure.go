package structure

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

// IndexEntry is one flattened, typed projection of a member value.
type IndexEntry struct {
	Path       string
	Kind       schema.Kind
	Enumerable bool
	// Text is the canonical rendering; for enumerables the encoded token string.
	Text string
	// Value is bound into the typed column: int64, float64, bool or string.
	Value any
}

// Column returns the index table column this entry populates.
func (e IndexEntry) Column() string {
	if e.Enumerable {
		return schema.ColStringValue
	}
	return e.Kind.Column()
}

// UniqueEntry is one unique-constrained value of a structure.
type UniqueEntry struct {
	Path  string
	Value string
	ID    ID
}

// Structure is the persisted form of one instance (ephemeral value object).
type Structure struct {
	id      ID
	json    string
	indexes []IndexEntry
	uniques []UniqueEntry
}

// New creates a Structure.
func New(id ID, jsonText string, indexes []IndexEntry, uniques []UniqueEntry) Structure {
	return Structure{id: id, json: jsonText, indexes: indexes, uniques: uniques}
}

// ID returns the resolved identifier.
func (s *Structure) ID() ID { return s.id }

// JSON returns the serialized instance.
func (s *Structure) JSON() string { return s.json }

// Indexes returns the index entries in schema order.
func (s *Structure) Indexes() []IndexEntry { return s.indexes }

// Uniques returns the unique entries.
func (s *Structure) Uniques() []UniqueEntry { return s.uniques }

// Serializer converts instances to and from JSON text.
type Serializer interface {
	Serialize(v any) (string, error)
	Deserialize(text string, v any) error
}

// JSONSerializer implements Serializer with encoding/json.
// Empty text deserializes to an absent value and leaves v untouched.
type JSONSerializer struct{}

// Serialize encodes v.
func (JSONSerializer) Serialize(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	return string(b), nil
}

// Deserialize decodes text into v.
func (JSONSerializer) Deserialize(text string, v any) error {
	if text == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("deserialize: %w", err)
	}
	return nil
}
