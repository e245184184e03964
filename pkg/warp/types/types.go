package types

import (
	"context"
)

const (
	TypePointer   string = "Pointer"
	TypeFile      string = "File"
	TypeIncrement string = "Increment"
)

type Transport interface {
	Create(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error)
	Update(ctx context.Context, endpoint, id string, payload map[string]any) (map[string]any, error)
	Destroy(ctx context.Context, endpoint, id string) error
}

// Reference is anything that can be stored as a Pointer attribute
type Reference interface {
	ClassName() string
	ID() string
	IsNew() bool
}

type FileReference interface {
	FileKey() string
	IsNew() bool
}

// PointerValue is the wire representation of a Pointer
type PointerValue struct {
	Type       string         `json:"type"`
	ClassName  string         `json:"className"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func NewPointerValue(className, id string) PointerValue {
	return PointerValue{
		Type:      TypePointer,
		ClassName: className,
		ID:        id,
	}
}

func (pv PointerValue) Map() map[string]any {
	m := map[string]any{
		"type":      TypePointer,
		"className": pv.ClassName,
		"id":        pv.ID,
	}

	if len(pv.Attributes) > 0 {
		m["attributes"] = pv.Attributes
	}

	return m
}

// FileValue is the wire representation of a File
type FileValue struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

func NewFileValue(key string) FileValue {
	return FileValue{
		Type: TypeFile,
		Key:  key,
	}
}

func (fv FileValue) Map() map[string]any {
	return map[string]any{
		"type": TypeFile,
		"key":  fv.Key,
	}
}

// IncrementValue is only ever sent to the server, never stored as an attribute
type IncrementValue struct {
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

func NewIncrementValue(delta int64) IncrementValue {
	return IncrementValue{
		Type:  TypeIncrement,
		Value: delta,
	}
}

func (iv IncrementValue) Map() map[string]any {
	return map[string]any{
		"type":  TypeIncrement,
		"value": iv.Value,
	}
}

// TypeTag returns the value of the "type" key of a wire map, if any
func TypeTag(value map[string]any) (string, bool) {
	tag, ok := value["type"].(string)
	return tag, ok
}
