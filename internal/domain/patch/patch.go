// Package patch implements JSON merge patches (RFC 7386) over decoded
// documents of dynamic sets.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kailas-cloud/structdex/internal/domain"
)

// MaxSize is the maximum allowed patch size in bytes.
const MaxSize = 163840 // 160KB

// Patch is a partial document update. A null member removes the key, an
// object member merges recursively and any other value replaces.
type Patch struct {
	ops map[string]any
}

// Parse validates and decodes a merge patch. At least one member must be provided.
func Parse(raw []byte) (Patch, error) {
	if len(raw) > MaxSize {
		return Patch{}, fmt.Errorf("patch too large (max %d bytes): %w", MaxSize, domain.ErrInvalidDocument)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var ops map[string]any
	if err := dec.Decode(&ops); err != nil {
		return Patch{}, fmt.Errorf("decode patch: %v: %w", err, domain.ErrInvalidDocument)
	}
	if len(ops) == 0 {
		return Patch{}, fmt.Errorf("at least one field must be provided: %w", domain.ErrInvalidDocument)
	}
	return Patch{ops: ops}, nil
}

// Fields returns the top-level keys the patch touches, sorted.
func (p Patch) Fields() []string {
	keys := make([]string, 0, len(p.ops))
	for k := range p.ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply merges the patch into doc and returns the result. doc is modified
// in place unless it is nil.
func (p Patch) Apply(doc map[string]any) map[string]any {
	return merge(doc, p.ops)
}

func merge(target, ops map[string]any) map[string]any {
	if target == nil {
		target = make(map[string]any, len(ops))
	}
	for k, v := range ops {
		switch pv := v.(type) {
		case nil:
			delete(target, k)
		case map[string]any:
			// a non-object target is replaced by the merged object
			tm, _ := target[k].(map[string]any)
			target[k] = merge(tm, pv)
		default:
			target[k] = v
		}
	}
	return target
}
