package files

import (
	"encoding/json"

	"github.com/diwise/warp/pkg/warp/types"
)

// File is a handle to binary content kept in external storage
type File struct {
	key   string
	name  string
	url   string
	isNew bool
}

type FileDecoratorFunc func(f *File)

func Name(name string) FileDecoratorFunc {
	return func(f *File) { f.name = name }
}

func URL(url string) FileDecoratorFunc {
	return func(f *File) { f.url = url }
}

// New returns a File that has not been uploaded yet and thus cannot be stored as an attribute
func New(key string, decorators ...FileDecoratorFunc) *File {
	f := &File{
		key:   key,
		isNew: true,
	}

	for _, decorator := range decorators {
		decorator(f)
	}

	return f
}

// CreateWithoutData returns a handle to an already stored file
func CreateWithoutData(key string, decorators ...FileDecoratorFunc) *File {
	f := New(key, decorators...)
	f.isNew = false
	return f
}

// FromValue builds a stored file handle from its wire representation
func FromValue(value map[string]any) (*File, bool) {
	if tag, ok := types.TypeTag(value); !ok || tag != types.TypeFile {
		return nil, false
	}

	key, ok := value["key"].(string)
	if !ok || key == "" {
		return nil, false
	}

	decorators := []FileDecoratorFunc{}
	if url, ok := value["url"].(string); ok {
		decorators = append(decorators, URL(url))
	}

	return CreateWithoutData(key, decorators...), true
}

func (f *File) FileKey() string {
	return f.key
}

func (f *File) Name() string {
	return f.name
}

func (f *File) URL() string {
	return f.url
}

func (f *File) IsNew() bool {
	return f.isNew
}

func (f *File) MarshalJSON() ([]byte, error) {
	return json.Marshal(types.NewFileValue(f.key))
}
