package objects

import (
	"encoding/json"

	"github.com/diwise/warp/pkg/warp/types"
)

type objectHolder interface {
	base() *Object
}

type jsonSerializer interface {
	ToJSON() map[string]any
}

// ToJSON returns the wire representation of the object. Unlike Payload, pointer
// attributes carry the attributes of the object they point to.
func (o *Object) ToJSON() map[string]any {
	return o.toJSON(map[*Object]bool{})
}

func (o *Object) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.ToJSON())
}

func (o *Object) toJSON(visiting map[*Object]bool) map[string]any {
	visiting[o] = true
	defer delete(visiting, o)

	item := map[string]any{
		KeyClassName: o.className,
		KeyID:        nullable(o.id),
		KeyCreatedAt: nullable(o.createdAt),
		KeyUpdatedAt: nullable(o.updatedAt),
	}

	for key, value := range o.attributes {
		item[key] = jsonValue(value, visiting)
	}

	return item
}

func jsonValue(value any, visiting map[*Object]bool) any {
	switch v := value.(type) {
	case types.Reference:
		pointer := types.NewPointerValue(v.ClassName(), v.ID())
		pointer.Attributes = nestedAttributes(v, visiting)
		return pointer.Map()
	case types.FileReference:
		return types.NewFileValue(v.FileKey()).Map()
	case map[string]any:
		if _, tagged := types.TypeTag(v); tagged {
			return v
		}

		if className, ok := v[KeyClassName].(string); ok && className != "" {
			pointer := types.NewPointerValue(className, identifier(v[KeyID]))
			pointer.Attributes = withoutIdentity(v)
			return pointer.Map()
		}

		if fileKey, ok := v["fileKey"].(string); ok && fileKey != "" {
			return types.NewFileValue(fileKey).Map()
		}
	}

	return value
}

func nestedAttributes(ref types.Reference, visiting map[*Object]bool) map[string]any {
	var nested map[string]any

	if holder, ok := ref.(objectHolder); ok {
		pointee := holder.base()
		if visiting[pointee] {
			// the pointee is already being serialized further up, emit its identity only
			return nil
		}
		nested = pointee.toJSON(visiting)
	} else if serializer, ok := ref.(jsonSerializer); ok {
		nested = serializer.ToJSON()
	} else {
		return nil
	}

	return withoutIdentity(nested)
}

func withoutIdentity(m map[string]any) map[string]any {
	remainder := make(map[string]any, len(m))

	for key, value := range m {
		if key == KeyClassName || key == KeyID {
			continue
		}
		if (key == KeyCreatedAt || key == KeyUpdatedAt) && value == nil {
			continue
		}
		remainder[key] = value
	}

	if len(remainder) == 0 {
		return nil
	}

	return remainder
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
