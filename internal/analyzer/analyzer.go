package analyzer

import (
	"fmt"
	"sort"
)

// Analyze parses a batch of raw error messages and builds the full report:
// category counts, a prioritized fix plan, and an advisory success
// probability. The probability never gates execution.
func Analyze(messages []string) Analysis {
	parsed := Parse(messages)

	fixable := 0
	categories := make(map[ErrorKind]int)
	for _, e := range parsed {
		categories[e.Kind]++
		if e.AutoFixable {
			fixable++
		}
	}

	return Analysis{
		TotalErrors:        len(parsed),
		AutoFixableErrors:  fixable,
		Categories:         categories,
		Errors:             parsed,
		Plan:               BuildFixPlan(parsed),
		SuccessProbability: successProbability(parsed),
	}
}

// BuildFixPlan maps parsed errors onto remediation steps, sorted
// high > medium > low. Steps with equal priority keep input order.
func BuildFixPlan(errors []ParsedError) []FixStep {
	var steps []FixStep

	for _, e := range errors {
		if !e.AutoFixable {
			continue
		}
		switch e.Kind {
		case KindMissingComponent:
			steps = append(steps, FixStep{
				Description: fmt.Sprintf("Create missing component: %s", e.MissingModule),
				Action:      ActionCreateComponent,
				Target:      e.MissingModule,
				Priority:    PriorityHigh,
			})
		case KindDependencyError:
			steps = append(steps, FixStep{
				Description: fmt.Sprintf("Add dependency: %s", e.MissingModule),
				Action:      ActionAddDependency,
				Target:      e.MissingModule,
				Priority:    PriorityMedium,
			})
		case KindNavigationError:
			steps = append(steps, FixStep{
				Description: "Fix navigation setup",
				Action:      ActionFixNavigation,
				Target:      "navigation_config",
				Priority:    PriorityHigh,
			})
		}
	}

	for _, e := range errors {
		if e.AutoFixable {
			continue
		}
		steps = append(steps, FixStep{
			Description: fmt.Sprintf("Manual fix required: %s", e.Kind),
			Action:      ActionManualReview,
			Target:      e.Message,
			Priority:    PriorityLow,
		})
	}

	sort.SliceStable(steps, func(i, j int) bool {
		return priorityRank(steps[i].Priority) > priorityRank(steps[j].Priority)
	})

	return steps
}

func successProbability(errors []ParsedError) float64 {
	if len(errors) == 0 {
		return 1.0
	}

	fixable := 0
	for _, e := range errors {
		if e.AutoFixable {
			fixable++
		}
	}
	p := float64(fixable) / float64(len(errors))

	for _, e := range errors {
		switch e.Kind {
		case KindSyntaxError, KindUnknown:
			p *= 0.5
		case KindMissingComponent, KindNavigationError:
			p *= 1.2
		}
	}

	if p > 1.0 {
		p = 1.0
	}
	if p < 0 {
		p = 0
	}
	return p
}
