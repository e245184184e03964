package objects

import (
	"encoding/json"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/diwise/warp/pkg/warp/types"
)

const (
	KeyClassName string = "className"
	KeyID        string = "id"
	KeyCreatedAt string = "created_at"
	KeyUpdatedAt string = "updated_at"
)

func isReserved(key string) bool {
	return key == KeyClassName || key == KeyID || key == KeyCreatedAt || key == KeyUpdatedAt
}

// Object is a mutable entity backed by a row in a Warp class
type Object struct {
	id        string
	className string
	createdAt string
	updatedAt string

	isNew   bool
	isDirty bool

	attributes map[string]any
	increments map[string]int64

	class *Class
}

func newObject(class *Class, className string) *Object {
	return &Object{
		className:  className,
		isNew:      true,
		attributes: map[string]any{},
		increments: map[string]int64{},
		class:      class,
	}
}

func (o *Object) base() *Object {
	return o
}

func (o *Object) ID() string {
	return o.id
}

func (o *Object) ClassName() string {
	return o.className
}

func (o *Object) CreatedAt() string {
	return o.createdAt
}

func (o *Object) UpdatedAt() string {
	return o.updatedAt
}

func (o *Object) IsNew() bool {
	return o.isNew
}

func (o *Object) IsDirty() bool {
	return o.isDirty
}

func (o *Object) Class() *Class {
	return o.class
}

// Set assigns a single attribute. The object is marked dirty even if the value did not change.
func (o *Object) Set(name string, value any) (*Object, error) {
	o.isDirty = true

	if err := o.set(name, value); err != nil {
		return nil, err
	}

	return o, nil
}

// SetAll assigns several attributes in lexical key order. Processing stops at the
// first invalid value and keys applied before it are kept.
func (o *Object) SetAll(attributes map[string]any) (*Object, error) {
	o.isDirty = true

	for _, key := range sortedKeys(attributes) {
		if err := o.set(key, attributes[key]); err != nil {
			return nil, err
		}
	}

	return o, nil
}

func (o *Object) set(name string, value any) error {
	if isReserved(name) {
		return nil
	}

	if isNilPointer(value) {
		o.attributes[name] = nil
		return nil
	}

	switch v := value.(type) {
	case nil:
		o.attributes[name] = nil
	case types.Reference:
		if v.IsNew() {
			return errors.NewForbiddenOperationError("cannot set a new Pointer as a key, please save the Pointer before using it")
		}
		o.attributes[name] = v
	case types.FileReference:
		if v.IsNew() {
			return errors.NewForbiddenOperationError("cannot set a new File as a key, please save the File before using it")
		}
		o.attributes[name] = v
	case types.IncrementValue, *types.IncrementValue:
		return errIncrementAssignment
	case map[string]any:
		if tag, ok := types.TypeTag(v); ok && tag == types.TypeIncrement {
			return errIncrementAssignment
		}
		o.attributes[name] = v
	case time.Time:
		o.attributes[name] = v.Format(time.RFC3339)
	case *time.Time:
		o.attributes[name] = v.Format(time.RFC3339)
	default:
		o.attributes[name] = v
	}

	return nil
}

var errIncrementAssignment = errors.NewForbiddenOperationError("cannot directly set an increment object, please use the Increment function instead")

// Get returns the value of an attribute, or nil if it is absent
func (o *Object) Get(name string) any {
	return o.attributes[name]
}

func (o *Object) Lookup(name string) (any, bool) {
	value, ok := o.attributes[name]
	return value, ok
}

// Attributes returns a shallow copy of the current attributes
func (o *Object) Attributes() map[string]any {
	attrs := make(map[string]any, len(o.attributes))
	for k, v := range o.attributes {
		attrs[k] = v
	}
	return attrs
}

// Increment registers a delta that the server will add to the attribute on the next save.
// A later call for the same attribute replaces the pending delta. A nil value resets it to 0.
func (o *Object) Increment(name string, value any) (*Object, error) {
	if value == nil {
		o.increments[name] = 0
		o.isDirty = true
		return o, nil
	}

	delta, ok := integerOf(value)
	if !ok {
		return nil, errors.NewInvalidObjectKeyError("the increment value must be an integer")
	}

	o.increments[name] = delta
	o.isDirty = true

	return o, nil
}

// PendingIncrement returns the delta that will be sent for name on the next save
func (o *Object) PendingIncrement(name string) (int64, bool) {
	delta, ok := o.increments[name]
	return delta, ok
}

func (o *Object) reset() {
	o.attributes = map[string]any{}
	o.increments = map[string]int64{}
	o.id = ""
	o.createdAt = ""
	o.updatedAt = ""
	o.isDirty = false
	o.isNew = true
}

func integerOf(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return uintOf(uint64(v))
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return uintOf(v)
	case float32:
		return floatOf(float64(v))
	case float64:
		return floatOf(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floatOf(f)
	case string:
		return parseInteger(v)
	}

	return 0, false
}

func uintOf(u uint64) (int64, bool) {
	if u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}

func floatOf(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}

	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}

	return int64(f), true
}

func parseInteger(s string) (int64, bool) {
	s = strings.TrimSpace(s)

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}

	return i, true
}

func isNilPointer(value any) bool {
	if value == nil {
		return false
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}

	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// identifier normalizes ids and timestamps received from a server
func identifier(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}

	return ""
}
