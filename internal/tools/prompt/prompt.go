// Package prompt exposes the reasoning-prompt generators as a tool.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/starbridge-ai/starbridge/internal/promptgen"
	"github.com/starbridge-ai/starbridge/internal/sandbox"
	"github.com/starbridge-ai/starbridge/internal/tools"
)

// GenerateTool builds structured reasoning prompts from a problem
// statement, using one named framework or all of them.
type GenerateTool struct{}

func NewGenerateTool() *GenerateTool {
	return &GenerateTool{}
}

func (t *GenerateTool) Name() string { return "generate_prompts" }

func (t *GenerateTool) Description() string {
	return "Generate structured reasoning prompts (SWOT, cost-benefit, counterfactual, analogous, blue ocean) from a problem statement"
}

func (t *GenerateTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"problem": map[string]any{
				"type":        "string",
				"description": "The problem or situation to build prompts for",
			},
			"framework": map[string]any{
				"type":        "string",
				"description": "Optional framework name; omit to run all of: " + strings.Join(promptgen.Names(), ", "),
			},
		},
		"required": []string{"problem"},
	}
}

func (t *GenerateTool) Validate(params map[string]any) error {
	if _, err := tools.RequireString(params, "problem"); err != nil {
		return err
	}
	if framework := tools.OptionalString(params, "framework", ""); framework != "" {
		if _, exists := promptgen.Registry()[framework]; !exists {
			return fmt.Errorf("%w: unknown framework %q (available: %s)",
				sandbox.ErrInvalidArgument, framework, strings.Join(promptgen.Names(), ", "))
		}
	}
	return nil
}

func (t *GenerateTool) Execute(_ context.Context, params map[string]any) (*tools.Result, error) {
	problem, err := tools.RequireString(params, "problem")
	if err != nil {
		return nil, err
	}

	if framework := tools.OptionalString(params, "framework", ""); framework != "" {
		gen := promptgen.Registry()[framework]
		prompt, err := gen(problem)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sandbox.ErrInvalidArgument, err)
		}
		return &tools.Result{
			Output:   prompt,
			Success:  true,
			Metadata: map[string]any{"framework": framework},
		}, nil
	}

	generations := promptgen.GenerateAll(problem)

	var sb strings.Builder
	failures := 0
	for _, g := range generations {
		if g.Err != nil {
			failures++
			continue
		}
		fmt.Fprintf(&sb, "## %s\n%s\n\n", g.Name, g.Prompt)
	}
	if failures == len(generations) {
		return nil, fmt.Errorf("%w: no generator accepted the problem statement", sandbox.ErrInvalidArgument)
	}

	return &tools.Result{
		Output:  tools.TruncateOutput(strings.TrimRight(sb.String(), "\n"), tools.MaxOutputBytes),
		Success: true,
		Metadata: map[string]any{
			"frameworks": len(generations) - failures,
			"failures":   failures,
		},
	}, nil
}
