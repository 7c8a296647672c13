package transform

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
)

// json sorts map keys, matching encoding/json output.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format is a document serialization format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. The empty string means YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q (use yaml or json)", ErrValue, s)
	}
}

// Marshal serializes doc. YAML uses a two-space indent; JSON is indented
// with two spaces and ends with a newline.
func Marshal(format Format, doc any) ([]byte, error) {
	switch format {
	case FormatJSON:
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding json: %w", err)
		}
		// jsoniter's MarshalIndent misplaces arrays nested in maps.
		var buf bytes.Buffer
		if err := stdjson.Indent(&buf, raw, "", "  "); err != nil {
			return nil, fmt.Errorf("indenting json: %w", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	case FormatYAML, "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrValue, format)
	}
}

// DefaultFilename is used when a Save step names no file.
const DefaultFilename = "config_{index}"

// Save writes the document to SaveDir/Filename and passes it through
// unchanged. The placeholders {id}, {index} and {seed} in Filename are
// expanded from the DocumentInfo in the context. When Format is empty it is
// inferred from the file extension, defaulting to YAML; a missing extension
// is added.
type Save struct {
	Filename string
	SaveDir  string
	Format   Format
}

func (s *Save) Name() string { return "save" }

func (s *Save) Apply(ctx context.Context, cfg cfgmap.Map) (cfgmap.Map, error) {
	if err := checkDocument(cfg); err != nil {
		return nil, err
	}

	target, format, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	data, err := Marshal(format, cfg)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(target); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating save dir: %w", err)
		}
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", target, err)
	}
	return cfg, nil
}

// Path returns the file Save would write for the document in ctx.
func (s *Save) Path(ctx context.Context) (string, error) {
	target, _, err := s.resolve(ctx)
	return target, err
}

func (s *Save) resolve(ctx context.Context) (string, Format, error) {
	name := s.Filename
	if name == "" {
		name = DefaultFilename
	}
	info, _ := DocumentFromContext(ctx)
	name = strings.NewReplacer(
		"{id}", info.ID,
		"{index}", strconv.Itoa(info.Index),
		"{seed}", strconv.FormatInt(info.Seed, 10),
	).Replace(name)

	format := s.Format
	ext := strings.ToLower(filepath.Ext(name))
	if format == "" {
		var err error
		if format, err = ParseFormat(strings.TrimPrefix(ext, ".")); err != nil {
			format = FormatYAML
		}
	}
	if ext == "" {
		name += "." + string(format)
	}
	return filepath.Join(s.SaveDir, name), format, nil
}
