// Package wizard implements the delta-generation wizard: step navigation,
// rule and filter collections, output column reconciliation and submission.
package wizard

import "fmt"

// Step is a screen of the delta-generation wizard.
type Step string

const (
	StepRuleManagement  Step = "rule_management"
	StepAIRequirements  Step = "ai_requirements"
	StepFilterData      Step = "filter_data"
	StepKeyRules        Step = "key_rules"
	StepComparisonRules Step = "comparison_rules"
	StepResultColumns   Step = "result_columns"
	StepReview          Step = "review"
	StepGenerateView    Step = "generate_view"
)

// Steps lists the wizard steps in order.
var Steps = []Step{
	StepRuleManagement,
	StepAIRequirements,
	StepFilterData,
	StepKeyRules,
	StepComparisonRules,
	StepResultColumns,
	StepReview,
	StepGenerateView,
}

func (s Step) index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

// Method is how the user chose to build the configuration.
type Method string

const (
	MethodNone   Method = ""
	MethodManual Method = "manual"
	MethodAI     Method = "ai"
	MethodLoad   Method = "load"
)

// Valid reports whether m is a selectable method.
func (m Method) Valid() bool {
	switch m {
	case MethodManual, MethodAI, MethodLoad:
		return true
	}
	return false
}

// nextStep returns the step after current. The AI requirements step is
// only visited when the method is ai. The last step has no successor.
func nextStep(current Step, method Method) (Step, error) {
	i := current.index()
	if i < 0 {
		return current, fmt.Errorf("unknown step %q", current)
	}
	if current == StepRuleManagement && method != MethodAI {
		return StepFilterData, nil
	}
	if i == len(Steps)-1 {
		return current, nil
	}
	return Steps[i+1], nil
}

// prevStep returns the step before current, mirroring nextStep's skip.
func prevStep(current Step, method Method) (Step, error) {
	i := current.index()
	if i < 0 {
		return current, fmt.Errorf("unknown step %q", current)
	}
	switch {
	case current == StepAIRequirements:
		return StepRuleManagement, nil
	case current == StepFilterData && method != MethodAI:
		return StepRuleManagement, nil
	case i == 0:
		return current, nil
	}
	return Steps[i-1], nil
}
