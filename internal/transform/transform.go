// File: internal/transform/transform.go
// Package transform implements the composable steps of a generation
// pipeline. Each step consumes a document and returns the (possibly new)
// document; Compose chains them in order.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
)

// Transform is one pipeline step.
type Transform interface {
	Apply(ctx context.Context, cfg cfgmap.Map) (cfgmap.Map, error)
}

// Named is implemented by transforms that report a name in step errors.
type Named interface {
	Name() string
}

var (
	// ErrNilDocument is returned when a step receives a nil document.
	ErrNilDocument = errors.New("transform: nil document")
	// ErrMissingKey is returned when a step's input keys are absent.
	ErrMissingKey = errors.New("transform: missing key")
	// ErrKeyExists is returned when a step would overwrite an existing key.
	ErrKeyExists = errors.New("transform: key already exists")
	// ErrType is returned when a value has the wrong type for the step.
	ErrType = errors.New("transform: unexpected value type")
	// ErrValue is returned for a value of the right type that cannot be used.
	ErrValue = errors.New("transform: invalid value")
)

func checkDocument(cfg cfgmap.Map) error {
	if cfg == nil {
		return ErrNilDocument
	}
	return nil
}

func checkKeys(cfg cfgmap.Map, keys []string) error {
	for _, k := range keys {
		if _, ok := cfg[k]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingKey, k)
		}
	}
	return nil
}

// DocumentInfo identifies the document being generated. Save uses it to
// expand filename placeholders.
type DocumentInfo struct {
	ID    string
	Index int
	Seed  int64
}

type documentKey struct{}

// ContextWithDocument attaches info to ctx.
func ContextWithDocument(ctx context.Context, info DocumentInfo) context.Context {
	return context.WithValue(ctx, documentKey{}, info)
}

// DocumentFromContext returns the attached info, if any.
func DocumentFromContext(ctx context.Context) (DocumentInfo, bool) {
	info, ok := ctx.Value(documentKey{}).(DocumentInfo)
	return info, ok
}
