package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diwise/warp/pkg/warp/files"
	"github.com/diwise/warp/pkg/warp/objects"
)

const (
	PointerPrefix string = "ptr:"
	FilePrefix    string = "file:"
)

// ParseAssignments turns a list of key=value arguments into an attribute map
func ParseAssignments(w *objects.Warp, args []string) (map[string]any, error) {
	attributes := map[string]any{}

	for _, arg := range args {
		key, value, err := ParseAssignment(w, arg)
		if err != nil {
			return nil, err
		}
		attributes[key] = value
	}

	return attributes, nil
}

func ParseAssignment(w *objects.Warp, arg string) (string, any, error) {
	key, raw, found := strings.Cut(arg, "=")
	if !found || strings.TrimSpace(key) == "" {
		return "", nil, fmt.Errorf("invalid attribute %q, expected key=value", arg)
	}

	value, err := ParseValue(w, raw)
	if err != nil {
		return "", nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}

	return key, value, nil
}

// ParseValue interprets a command line value as a pointer, a file, a JSON literal or a plain string
func ParseValue(w *objects.Warp, raw string) (any, error) {
	if ref, ok := strings.CutPrefix(raw, PointerPrefix); ok {
		className, id, found := strings.Cut(ref, ":")
		if !found || className == "" || id == "" {
			return nil, fmt.Errorf("pointer %q must be on the form %s<Class>:<id>", raw, PointerPrefix)
		}
		return w.CreateWithoutData(className, id), nil
	}

	if key, ok := strings.CutPrefix(raw, FilePrefix); ok {
		if key == "" {
			return nil, fmt.Errorf("file reference %q is missing a key", raw)
		}
		return files.CreateWithoutData(key), nil
	}

	d := json.NewDecoder(bytes.NewBufferString(raw))
	d.UseNumber()

	var value any
	if err := d.Decode(&value); err == nil && !d.More() {
		return value, nil
	}

	return raw, nil
}
