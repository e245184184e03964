package objects

import (
	"context"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/warp/pkg/warp/errors"
	"github.com/diwise/warp/pkg/warp/types"
)

// Endpoint returns the collection endpoint of a class
func Endpoint(className string) string {
	return "classes/" + className
}

type continuations struct {
	onSuccess func(*Object) (*Object, error)
	onFailure func(error) (*Object, error)
}

type CallbackFunc func(c *continuations)

// OnSuccess is invoked with the object when an operation succeeds. Whatever it returns
// becomes the result of the operation, and an error it returns is passed on to OnFailure.
func OnSuccess(fn func(*Object) (*Object, error)) CallbackFunc {
	return func(c *continuations) { c.onSuccess = fn }
}

// OnFailure is invoked with the error when an operation fails and may recover from it
func OnFailure(fn func(error) (*Object, error)) CallbackFunc {
	return func(c *continuations) { c.onFailure = fn }
}

func settle(o *Object, err error, callbacks []CallbackFunc) (*Object, error) {
	c := &continuations{}
	for _, callback := range callbacks {
		callback(c)
	}

	if err == nil && c.onSuccess != nil {
		o, err = c.onSuccess(o)
	}

	if err != nil {
		if c.onFailure != nil {
			return c.onFailure(err)
		}
		return nil, err
	}

	return o, nil
}

func (o *Object) transport() (types.Transport, error) {
	if o.class != nil && o.class.warp != nil {
		if t := o.class.warp.Transport(); t != nil {
			return t, nil
		}
	}

	return nil, errors.NewMissingConfigurationError("missing transport for Object")
}

// Payload returns the wire representation of the pending changes. Pointers and files are
// reduced to their identity and pending increments replace any value set for the same key.
func (o *Object) Payload() map[string]any {
	params := make(map[string]any, len(o.attributes)+len(o.increments))

	for key, value := range o.attributes {
		params[key] = payloadValue(value)
	}

	for key, delta := range o.increments {
		params[key] = types.NewIncrementValue(delta).Map()
	}

	return params
}

func payloadValue(value any) any {
	switch v := value.(type) {
	case types.Reference:
		return types.NewPointerValue(v.ClassName(), v.ID()).Map()
	case types.FileReference:
		return types.NewFileValue(v.FileKey()).Map()
	case types.PointerValue:
		return types.NewPointerValue(v.ClassName, v.ID).Map()
	case *types.PointerValue:
		return types.NewPointerValue(v.ClassName, v.ID).Map()
	case types.FileValue:
		return v.Map()
	case *types.FileValue:
		return v.Map()
	case map[string]any:
		if className, ok := v[KeyClassName].(string); ok && className != "" {
			return types.NewPointerValue(className, identifier(v[KeyID])).Map()
		}
		if fileKey, ok := v["fileKey"].(string); ok && fileKey != "" {
			return types.NewFileValue(fileKey).Map()
		}
	}

	return value
}

// Save creates the object on the server if it is new, or sends the pending changes if it
// is dirty. A clean, persisted object is returned as is without contacting the server.
func (o *Object) Save(ctx context.Context, callbacks ...CallbackFunc) (*Object, error) {
	transport, err := o.transport()
	if err != nil {
		return nil, err
	}

	if !o.isNew && !o.isDirty {
		return settle(o, nil, callbacks)
	}

	log := logging.GetFromContext(ctx)

	// cleared before the request completes, a mutation made meanwhile marks the object dirty again
	o.isDirty = false

	payload := o.Payload()
	pending := o.increments
	o.increments = map[string]int64{}

	endpoint := Endpoint(o.className)

	if o.isNew {
		result, err := transport.Create(ctx, endpoint, payload)
		if err != nil {
			log.Debug("failed to create object", "className", o.className, "err", err.Error())
			o.restore(pending)
			return settle(o, err, callbacks)
		}

		o.id = identifier(result[KeyID])
		o.createdAt = identifier(result[KeyCreatedAt])
		o.updatedAt = identifier(result[KeyUpdatedAt])
		o.isNew = false

		log.Debug("object created", "className", o.className, "id", o.id)

		return settle(o, nil, callbacks)
	}

	result, err := transport.Update(ctx, endpoint, o.id, payload)
	if err != nil {
		log.Debug("failed to update object", "className", o.className, "id", o.id, "err", err.Error())
		o.restore(pending)
		return settle(o, err, callbacks)
	}

	err = o.merge(result)
	if err != nil {
		return settle(o, err, callbacks)
	}

	log.Debug("object updated", "className", o.className, "id", o.id)

	return settle(o, nil, callbacks)
}

// restore puts back the increments of a failed request and marks the object dirty so that
// the next Save sends the changes again. Deltas set while the request was in flight win.
func (o *Object) restore(pending map[string]int64) {
	for key, delta := range pending {
		if _, ok := o.increments[key]; !ok {
			o.increments[key] = delta
		}
	}

	o.isDirty = true
}

// merge applies the server's view of the updated fields without marking the object dirty
func (o *Object) merge(result map[string]any) error {
	dirty := o.isDirty
	defer func() { o.isDirty = dirty }()

	if updatedAt, ok := result[KeyUpdatedAt]; ok {
		o.updatedAt = identifier(updatedAt)
	}

	for _, key := range sortedKeys(result) {
		if isReserved(key) {
			continue
		}

		if err := o.set(key, o.decodeValue(result[key])); err != nil {
			return err
		}
	}

	return nil
}

func (o *Object) decodeValue(value any) any {
	if o.class == nil || o.class.warp == nil {
		return value
	}
	return o.class.warp.decodeValue(value)
}

// Destroy deletes the object on the server, unless it was never saved, and resets it
// to an empty new object.
func (o *Object) Destroy(ctx context.Context, callbacks ...CallbackFunc) (*Object, error) {
	transport, err := o.transport()
	if err != nil {
		return nil, err
	}

	if o.isNew {
		o.reset()
		return settle(o, nil, callbacks)
	}

	log := logging.GetFromContext(ctx)

	err = transport.Destroy(ctx, Endpoint(o.className), o.id)
	if err != nil {
		log.Debug("failed to destroy object", "className", o.className, "id", o.id, "err", err.Error())
		return settle(o, err, callbacks)
	}

	log.Debug("object destroyed", "className", o.className, "id", o.id)

	o.reset()

	return settle(o, nil, callbacks)
}
