package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
	"github.com/starbridge-ai/starbridge/internal/tools"
)

var _ tools.Tool = (*GenerateTool)(nil)

func TestGenerateSingleFramework(t *testing.T) {
	tool := NewGenerateTool()
	params := map[string]any{
		"problem":   "our delivery routes waste fuel in city centers",
		"framework": "swot_analysis",
	}
	if err := tool.Validate(params); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if !strings.Contains(result.Output, "SWOT analysis") {
		t.Fatalf("output = %q", result.Output)
	}
	if result.Metadata["framework"] != "swot_analysis" {
		t.Fatalf("metadata = %v", result.Metadata)
	}
}

func TestGenerateAllFrameworks(t *testing.T) {
	tool := NewGenerateTool()
	result, err := tool.Execute(context.Background(), map[string]any{
		"problem": "our delivery routes waste fuel in city centers",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, heading := range []string{
		"## swot_analysis",
		"## cost_benefit_analysis",
		"## counterfactual_reasoning",
		"## analogous_reasoning",
		"## blue_ocean_strategy",
	} {
		if !strings.Contains(result.Output, heading) {
			t.Fatalf("output missing %q:\n%s", heading, result.Output)
		}
	}
	if result.Metadata["frameworks"] != 5 {
		t.Fatalf("metadata = %v", result.Metadata)
	}
}

func TestEmptyFrameworkRunsAll(t *testing.T) {
	tool := NewGenerateTool()
	params := map[string]any{
		"problem":   "our delivery routes waste fuel in city centers",
		"framework": "",
	}
	if err := tool.Validate(params); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Metadata["frameworks"] != 5 {
		t.Fatalf("empty framework should run all generators, metadata = %v", result.Metadata)
	}
}

func TestValidateUnknownFramework(t *testing.T) {
	tool := NewGenerateTool()
	err := tool.Validate(map[string]any{
		"problem":   "anything",
		"framework": "six_hats",
	})
	if !errors.Is(err, sandbox.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestExecuteBlankProblem(t *testing.T) {
	tool := NewGenerateTool()
	_, err := tool.Execute(context.Background(), map[string]any{"problem": "   "})
	if !errors.Is(err, sandbox.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}