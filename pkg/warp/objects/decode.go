package objects

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/diwise/warp/pkg/warp/files"
	"github.com/diwise/warp/pkg/warp/types"
)

// Decode builds a persisted object of className from its wire representation.
// Pointer and File values are turned into references through the registry.
func (w *Warp) Decode(className string, wire map[string]any) (*Object, error) {
	if className == "" {
		if name, ok := wire[KeyClassName].(string); ok {
			className = name
		}
	}

	if className == "" {
		return nil, errors.NewInvalidObjectKeyError("missing className")
	}

	o, err := w.GetSubclass(className)(nil)
	if err != nil {
		return nil, err
	}

	o.id = identifier(wire[KeyID])
	o.createdAt = identifier(wire[KeyCreatedAt])
	o.updatedAt = identifier(wire[KeyUpdatedAt])
	o.isNew = o.id == ""

	for _, key := range sortedKeys(wire) {
		if isReserved(key) {
			continue
		}

		if err := o.set(key, w.decodeValue(wire[key])); err != nil {
			return nil, err
		}
	}

	o.isDirty = false

	return o, nil
}

func (w *Warp) DecodeJSON(className string, body []byte) (*Object, error) {
	d := json.NewDecoder(bytes.NewReader(body))
	d.UseNumber()

	wire := map[string]any{}
	if err := d.Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", className, err)
	}

	return w.Decode(className, wire)
}

func (w *Warp) decodeValue(value any) any {
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}

	tag, ok := types.TypeTag(m)
	if !ok {
		return value
	}

	switch tag {
	case types.TypePointer:
		if ref, ok := w.decodePointer(m); ok {
			return ref
		}
	case types.TypeFile:
		if f, ok := files.FromValue(m); ok {
			return f
		}
	}

	return value
}

func (w *Warp) decodePointer(m map[string]any) (*Object, bool) {
	className, _ := m[KeyClassName].(string)
	id := identifier(m[KeyID])

	if className == "" || id == "" {
		return nil, false
	}

	nested, _ := m["attributes"].(map[string]any)
	wire := make(map[string]any, len(nested)+2)
	for k, v := range nested {
		wire[k] = v
	}
	wire[KeyClassName] = className
	wire[KeyID] = id

	o, err := w.Decode(className, wire)
	if err != nil {
		return nil, false
	}

	return o, true
}
