package transform

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
)

// Compose applies transforms sequentially.
type Compose struct {
	Steps []Transform
}

// NewCompose returns a Compose over steps.
func NewCompose(steps ...Transform) *Compose {
	return &Compose{Steps: steps}
}

// Append adds steps to the end of the chain.
func (c *Compose) Append(steps ...Transform) {
	c.Steps = append(c.Steps, steps...)
}

func (c *Compose) Name() string { return "compose" }

// Apply runs every step in order, feeding each the previous step's output.
// It stops at the first failure, and also when ctx is done.
func (c *Compose) Apply(ctx context.Context, cfg cfgmap.Map) (cfgmap.Map, error) {
	for i, step := range c.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := step.Apply(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, stepName(step), err)
		}
		cfg = out
	}
	return cfg, nil
}

func stepName(t Transform) string {
	if n, ok := t.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", t)
}
