// File: internal/pipeline/pipeline.go
// Package pipeline builds a transform chain from a YAML definition.
//
// A definition names a seed document and an ordered list of steps:
//
//	seed:
//	  detector: {peak: 511}
//	steps:
//	  - type: formula
//	    keys: [n_crystals]
//	    expr: {name: randint, args: {low: 40, high: 60}}
//	  - type: formula
//	    keys: [n_modules]
//	    expr:
//	      name: divisor
//	      args: {key: n_crystals, strategy: nearest-below, threshold: 7}
//	  - type: save
//	    filename: config_{index}.yaml
//	    save_dir: out
//
// Any scalar of the exact form ${stats:name} is replaced by the value of
// name in the stats file before the steps are built. Inside flow
// collections ({...} or [...]) the reference must be quoted, as in
// {peak: "${stats:peak}"}, or the braces end the collection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
	"github.com/xkilldash9x/randfig/internal/expr"
	"github.com/xkilldash9x/randfig/internal/transform"
)

var (
	// ErrUnknownStep is returned for an unrecognized step type.
	ErrUnknownStep = errors.New("pipeline: unknown step type")
	// ErrUnknownStat is returned when a ${stats:name} reference has no value.
	ErrUnknownStat = errors.New("pipeline: unknown stat")
	// ErrInvalidStep is returned for a step missing required fields.
	ErrInvalidStep = errors.New("pipeline: invalid step")
)

var statsRef = regexp.MustCompile(`^\$\{stats:([^}]+)\}$`)

// Definition is the decoded YAML document.
type Definition struct {
	Seed  map[string]any `yaml:"seed"`
	Steps []StepSpec     `yaml:"steps"`
}

// StepSpec declares one step. Which fields apply depends on Type.
type StepSpec struct {
	Type     string     `yaml:"type"`
	Keys     []string   `yaml:"keys"`
	Value    any        `yaml:"value"`
	Root     string     `yaml:"root"`
	NewKeys  [][]string `yaml:"new_keys"`
	Remove   bool       `yaml:"remove"`
	Filename string     `yaml:"filename"`
	SaveDir  string     `yaml:"save_dir"`
	Format   string     `yaml:"format"`
	Expr     *ExprSpec  `yaml:"expr"`
}

// ExprSpec names a registered expression and its arguments.
type ExprSpec struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args"`
}

// Pipeline is a built definition.
type Pipeline struct {
	Seed  cfgmap.Map
	Steps *transform.Compose
}

// Append adds trailing steps, such as an output-directory Save.
func (p *Pipeline) Append(steps ...transform.Transform) {
	p.Steps.Append(steps...)
}

// Apply runs the steps over a fresh copy of the seed.
func (p *Pipeline) Apply(ctx context.Context) (cfgmap.Map, error) {
	return p.Steps.Apply(ctx, cfgmap.Clone(p.Seed))
}

// Loader builds pipelines against an expression registry and a stats table.
type Loader struct {
	registry *expr.Registry
	stats    map[string]any
	logger   *zap.Logger
}

// NewLoader returns a Loader. stats may be nil.
func NewLoader(logger *zap.Logger, registry *expr.Registry, stats map[string]any) *Loader {
	if registry == nil {
		registry = expr.NewRegistry(logger)
	}
	return &Loader{registry: registry, stats: stats, logger: logger.Named("pipeline")}
}

// Load reads and builds the definition at path.
func (l *Loader) Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file: %w", err)
	}
	p, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse builds a pipeline from YAML.
func (l *Loader) Parse(data []byte) (*Pipeline, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing pipeline yaml: %w", err)
	}
	if err := l.resolveStats(&root); err != nil {
		return nil, err
	}

	var def Definition
	if len(root.Content) > 0 {
		if err := root.Decode(&def); err != nil {
			return nil, fmt.Errorf("decoding pipeline: %w", err)
		}
	}
	return l.Build(def)
}

// Build turns a decoded definition into a Pipeline.
func (l *Loader) Build(def Definition) (*Pipeline, error) {
	seed, _ := cfgmap.Normalize(def.Seed).(cfgmap.Map)
	if seed == nil {
		seed = cfgmap.Map{}
	}

	steps := make([]transform.Transform, 0, len(def.Steps))
	for i, spec := range def.Steps {
		step, err := l.buildStep(spec)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}

	l.logger.Debug("Pipeline built", zap.Int("steps", len(steps)), zap.Int("seed_keys", len(seed)))
	return &Pipeline{Seed: seed, Steps: transform.NewCompose(steps...)}, nil
}

func (l *Loader) buildStep(spec StepSpec) (transform.Transform, error) {
	switch spec.Type {
	case "insert":
		if len(spec.Keys) == 0 {
			return nil, fmt.Errorf("%w: insert needs keys", ErrInvalidStep)
		}
		return &transform.Insert{Keys: spec.Keys, Value: cfgmap.Normalize(spec.Value)}, nil
	case "remove":
		if len(spec.Keys) == 0 {
			return nil, fmt.Errorf("%w: remove needs keys", ErrInvalidStep)
		}
		return &transform.Remove{Keys: spec.Keys}, nil
	case "formula":
		if len(spec.Keys) == 0 || spec.Expr == nil {
			return nil, fmt.Errorf("%w: formula needs keys and expr", ErrInvalidStep)
		}
		args, _ := cfgmap.Normalize(spec.Expr.Args).(cfgmap.Map)
		fn, err := l.registry.Build(spec.Expr.Name, expr.Args(args))
		if err != nil {
			return nil, err
		}
		return &transform.Formula{Keys: spec.Keys, Func: fn}, nil
	case "nest":
		if len(spec.Keys) == 0 || spec.Root == "" {
			return nil, fmt.Errorf("%w: nest needs keys and root", ErrInvalidStep)
		}
		return &transform.Nest{Keys: spec.Keys, Root: spec.Root}, nil
	case "unpack":
		if len(spec.Keys) != len(spec.NewKeys) {
			return nil, fmt.Errorf("%w: unpack has %d keys but %d new_keys groups", ErrInvalidStep, len(spec.Keys), len(spec.NewKeys))
		}
		return &transform.Unpack{Keys: spec.Keys, NewKeys: spec.NewKeys, Remove: spec.Remove}, nil
	case "save":
		var format transform.Format
		if spec.Format != "" {
			f, err := transform.ParseFormat(spec.Format)
			if err != nil {
				return nil, err
			}
			format = f
		}
		return &transform.Save{Filename: spec.Filename, SaveDir: spec.SaveDir, Format: format}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, spec.Type)
	}
}

// resolveStats rewrites ${stats:name} scalars in place.
func (l *Loader) resolveStats(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		m := statsRef.FindStringSubmatch(node.Value)
		if m == nil {
			return nil
		}
		v, ok := l.stats[m[1]]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownStat, m[1])
		}
		if err := node.Encode(v); err != nil {
			return fmt.Errorf("substituting stat %q: %w", m[1], err)
		}
		return nil
	}
	for _, child := range node.Content {
		if err := l.resolveStats(child); err != nil {
			return err
		}
	}
	return nil
}

// LoadStats reads a YAML mapping of stat names to values.
func LoadStats(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stats file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing stats file %s: %w", path, err)
	}
	stats, _ := cfgmap.Normalize(raw).(cfgmap.Map)
	if stats == nil {
		stats = cfgmap.Map{}
	}
	return stats, nil
}
