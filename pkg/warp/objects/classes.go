package objects

import (
	"sync"

	"github.com/diwise/warp/pkg/warp/types"
)

// Factory constructs a new object of a registered class
type Factory func(attributes map[string]any) (*Object, error)

// Warp holds the transport and the class registry shared by every object kind
type Warp struct {
	mu        sync.RWMutex
	transport types.Transport
	registry  map[string]Factory
	classes   map[string]*Class

	root *Class
}

func NewWarp(transport types.Transport) *Warp {
	w := &Warp{
		transport: transport,
		registry:  map[string]Factory{},
		classes:   map[string]*Class{},
	}

	w.root = &Class{warp: w}

	return w
}

// Initialize installs the transport used by every class created from w
func (w *Warp) Initialize(transport types.Transport) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.transport = transport
}

func (w *Warp) Transport() types.Transport {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.transport
}

// Object returns the base class that every kind extends
func (w *Warp) Object() *Class {
	return w.root
}

// New constructs a plain object of the named class, without any class specific behaviour
func (w *Warp) New(className string, attributes map[string]any) (*Object, error) {
	return w.root.construct(className, attributes)
}

func (w *Warp) Extend(className string, options ...ClassOption) *Class {
	return w.root.Extend(className, options...)
}

func (w *Warp) RegisterSubclass(c *Class) {
	w.mu.Lock()
	w.classes[c.Name()] = c
	w.mu.Unlock()

	w.Register(c.Name(), c.Factory())
}

func (w *Warp) Register(className string, factory Factory) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.registry[className] = factory
}

// GetSubclass returns the factory registered for className, or one that builds
// plain objects of that class if nothing has been registered
func (w *Warp) GetSubclass(className string) Factory {
	w.mu.RLock()
	factory, ok := w.registry[className]
	w.mu.RUnlock()

	if ok {
		return factory
	}

	return func(attributes map[string]any) (*Object, error) {
		return w.root.construct(className, attributes)
	}
}

// CreateWithoutData returns a reference to an existing object, built by the
// registered class of that name when there is one
func (w *Warp) CreateWithoutData(className, id string) *Object {
	w.mu.RLock()
	c, ok := w.classes[className]
	w.mu.RUnlock()

	if !ok {
		c = w.root
	}

	return c.CreateWithoutData(id, className)
}

// Class describes an object kind created through Extend
type Class struct {
	warp   *Warp
	parent *Class
	name   string

	initialize func(o *Object)
	defaults   map[string]any
	statics    map[string]any
}

type ClassOption func(c *Class)

// WithInitializer replaces the hook that runs at the end of every construction
func WithInitializer(initialize func(o *Object)) ClassOption {
	return func(c *Class) { c.initialize = initialize }
}

// WithDefaults adds attributes that are applied to every new instance before the caller's own
func WithDefaults(attributes map[string]any) ClassOption {
	return func(c *Class) {
		for k, v := range attributes {
			c.defaults[k] = v
		}
	}
}

func WithStatics(values map[string]any) ClassOption {
	return func(c *Class) {
		for k, v := range values {
			c.statics[k] = v
		}
	}
}

// Extend derives a new kind from c. The derived kind inherits the initializer,
// defaults and statics of c unless the options override them.
func (c *Class) Extend(className string, options ...ClassOption) *Class {
	sub := &Class{
		warp:       c.warp,
		parent:     c,
		name:       className,
		initialize: c.initialize,
		defaults:   copyMap(c.defaults),
		statics:    copyMap(c.statics),
	}

	for _, option := range options {
		option(sub)
	}

	return sub
}

func (c *Class) Name() string {
	return c.name
}

func (c *Class) Parent() *Class {
	return c.parent
}

func (c *Class) Warp() *Warp {
	return c.warp
}

func (c *Class) Static(name string) (any, bool) {
	value, ok := c.statics[name]
	return value, ok
}

// New constructs an unsaved instance. The class name is fixed by the class and
// cannot be overridden through attributes.
func (c *Class) New(attributes map[string]any) (*Object, error) {
	return c.construct(c.name, attributes)
}

func (c *Class) Factory() Factory {
	return c.New
}

// CreateWithoutData returns a reference to an existing row that can be used as a
// Pointer without fetching it first
func (c *Class) CreateWithoutData(id string, className ...string) *Object {
	name := c.name
	if len(className) > 0 && className[0] != "" {
		name = className[0]
	}

	o := newObject(c, name)
	if c.initialize != nil {
		c.initialize(o)
	}

	o.id = id
	o.isNew = false
	o.isDirty = false

	return o
}

func (c *Class) construct(className string, attributes map[string]any) (*Object, error) {
	o := newObject(c, className)

	if len(c.defaults) > 0 {
		if _, err := o.SetAll(c.defaults); err != nil {
			return nil, err
		}
	}

	if attributes != nil {
		if _, err := o.SetAll(attributes); err != nil {
			return nil, err
		}
	}

	if c.initialize != nil {
		c.initialize(o)
	}

	return o, nil
}

// Kind binds a class to a Go type that embeds *Object
type Kind[T any] struct {
	*Class
	wrap func(*Object) T
}

func NewKind[T any](c *Class, wrap func(*Object) T) *Kind[T] {
	return &Kind[T]{
		Class: c,
		wrap:  wrap,
	}
}

func (k *Kind[T]) New(attributes map[string]any) (T, error) {
	o, err := k.Class.New(attributes)
	if err != nil {
		var zero T
		return zero, err
	}
	return k.wrap(o), nil
}

func (k *Kind[T]) CreateWithoutData(id string) T {
	return k.wrap(k.Class.CreateWithoutData(id))
}

// Wrap returns the typed view of an object built by this kind's class
func (k *Kind[T]) Wrap(o *Object) T {
	return k.wrap(o)
}

func copyMap(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
