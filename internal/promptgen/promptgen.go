// Package promptgen builds structured reasoning prompts from a raw
// problem statement. Each generator applies one analytical framework
// (SWOT, cost-benefit, counterfactual, analogous reasoning, blue
// ocean) and returns a prompt ready to hand to a language model; no
// model call happens here.
package promptgen

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Generator turns a problem statement into a framework-specific prompt.
type Generator func(problem string) (string, error)

var (
	leadingAnalysisVerbs = regexp.MustCompile(`(?i)^(Analyze|Evaluate|Consider|Compare|Should we|Perform a SWOT on|Perform CBA on)\s+`)
	counterfactualOpener = regexp.MustCompile(`(?i)^(What if|Imagine|Suppose)\s+`)
)

// Registry returns the generator set keyed by name. The mapping is an
// explicit literal so the available frameworks are visible in one place.
func Registry() map[string]Generator {
	return map[string]Generator{
		"swot_analysis":            SWOTAnalysis,
		"cost_benefit_analysis":    CostBenefitAnalysis,
		"counterfactual_reasoning": CounterfactualReasoning,
		"analogous_reasoning":      AnalogousReasoning,
		"blue_ocean_strategy":      BlueOceanStrategy,
	}
}

// Names returns the registered generator names in sorted order.
func Names() []string {
	reg := Registry()
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generation is the outcome of one generator run.
type Generation struct {
	Name   string
	Prompt string
	Err    error
}

// GenerateAll runs every registered generator concurrently and returns
// the results sorted by generator name. A failing generator records its
// error without affecting the others.
func GenerateAll(problem string) []Generation {
	reg := Registry()

	results := make(chan Generation, len(reg))
	var wg sync.WaitGroup
	for name, gen := range reg {
		wg.Add(1)
		go func(name string, gen Generator) {
			defer wg.Done()
			prompt, err := gen(problem)
			results <- Generation{Name: name, Prompt: prompt, Err: err}
		}(name, gen)
	}
	wg.Wait()
	close(results)

	out := make([]Generation, 0, len(reg))
	for g := range results {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SWOTAnalysis asks for a strengths/weaknesses/opportunities/threats
// breakdown of the subject.
func SWOTAnalysis(problem string) (string, error) {
	subject, err := normalizeStatement(problem)
	if err != nil {
		return "", err
	}
	return subject +
		" Conduct a SWOT analysis identifying key internal (Strengths, Weaknesses)" +
		" and external (Opportunities, Threats) factors." +
		" Highlight potential strategic implications or actions based on the findings.", nil
}

// CostBenefitAnalysis asks for a CBA of the decision or scenario.
func CostBenefitAnalysis(problem string) (string, error) {
	decision, err := normalizeStatement(problem)
	if err != nil {
		return "", err
	}
	return decision + " Perform a Cost-Benefit Analysis." +
		" Identify and compare key quantitative and qualitative costs and benefits" +
		" over a relevant timeframe (e.g., 3-5 years)." +
		" Present the results clearly, potentially using a table to list costs and benefits." +
		" Summarize the net benefit or loss and provide a recommendation based on the analysis.", nil
}

// CounterfactualReasoning asks for exploration of an alternate "what if"
// scenario built from the premise.
func CounterfactualReasoning(problem string) (string, error) {
	premise := strings.TrimSpace(problem)
	if premise == "" {
		return "", fmt.Errorf("empty problem statement")
	}

	if counterfactualOpener.MatchString(premise) {
		premise = capitalize(premise)
		if !strings.HasSuffix(premise, "?") {
			premise += "?"
		}
	} else if strings.HasSuffix(premise, "?") {
		premise = capitalize(premise)
	} else {
		premise = "What if " + strings.TrimRight(premise, ".") + "?"
	}

	request := "Explore the potential consequences of this alternate scenario."
	switch {
	case strings.HasPrefix(strings.ToLower(premise), "what if"):
		request = "Simulate the likely outcomes and evolution resulting from this premise."
	case strings.HasPrefix(strings.ToLower(premise), "imagine"),
		strings.HasPrefix(strings.ToLower(premise), "suppose"):
		request = "Describe the world or situation that might have resulted."
	}

	return premise + " " + request +
		" Include analysis of key turning points, major affected domains" +
		" (e.g., technology, society, economy), and significant deviations from our actual timeline.", nil
}

// AnalogousReasoning asks for a solution borrowed from an unrelated
// domain whose structure maps onto the problem.
func AnalogousReasoning(problem string) (string, error) {
	target := strings.TrimSpace(problem)
	if target == "" {
		return "", fmt.Errorf("empty problem statement")
	}
	return fmt.Sprintf(
		"Identify a system, process, or concept from an unrelated domain whose principles"+
			" or structure could be applied to '%s'."+
			" Describe how its core principles or underlying logic could be adapted to this new context."+
			" Outline the key components or steps of this analogous approach.",
		target,
	), nil
}

// BlueOceanStrategy asks for an untapped-market analysis of the
// situation using the ERRC grid.
func BlueOceanStrategy(problem string) (string, error) {
	situation := strings.TrimSpace(problem)
	if situation == "" {
		return "", fmt.Errorf("empty problem statement")
	}
	situation = capitalize(situation)
	if !strings.HasSuffix(situation, ".") && !strings.HasSuffix(situation, "?") && !strings.HasSuffix(situation, "!") {
		situation += "."
	}
	return situation +
		" Apply the Blue Ocean Strategy to identify an untapped market segment" +
		" and make the competition irrelevant." +
		" Use the Eliminate-Reduce-Raise-Create (ERRC) Grid to propose innovative value" +
		" propositions or features that could differentiate our offerings and create new demand." +
		" Consider relevant industry trends, non-customer groups, and complementary" +
		" product/service offerings.", nil
}

// normalizeStatement trims the input, strips a leading analysis verb,
// capitalizes the first letter, and guarantees terminal punctuation.
func normalizeStatement(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty problem statement")
	}
	s = strings.TrimSpace(leadingAnalysisVerbs.ReplaceAllString(s, ""))
	if s == "" {
		return "", fmt.Errorf("problem statement has no content beyond a leading verb")
	}
	s = capitalize(s)
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "?") && !strings.HasSuffix(s, "!") {
		s += "."
	}
	return s, nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
