package wizard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TFMV/deltaflow/pkg/core"
)

var (
	// ErrIndexOutOfRange is returned when a rule or filter index does not exist.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrUnknownField is returned when updating a field rules do not have.
	ErrUnknownField = errors.New("unknown rule field")

	// ErrInvalidMatchType is returned for match types outside the enum.
	ErrInvalidMatchType = errors.New("invalid match type")

	// ErrUnknownRuleKind is returned for rule kinds other than key and comparison.
	ErrUnknownRuleKind = errors.New("unknown rule kind")
)

// RuleKind selects the key or the comparison rule list.
type RuleKind string

const (
	KindKey        RuleKind = "key"
	KindComparison RuleKind = "comparison"
)

// RuleField names an editable rule field.
type RuleField string

const (
	FieldLeftFileColumn  RuleField = "LeftFileColumn"
	FieldRightFileColumn RuleField = "RightFileColumn"
	FieldMatchType       RuleField = "MatchType"
	FieldToleranceValue  RuleField = "ToleranceValue"
)

// NewRule returns a rule with default settings for kind.
func NewRule(kind RuleKind) core.DeltaRule {
	return core.DeltaRule{
		MatchType:      core.MatchEquals,
		ToleranceValue: nil,
		IsKey:          kind == KindKey,
	}
}

// AppendRule appends a default rule.
func AppendRule(rules []core.DeltaRule, kind RuleKind) []core.DeltaRule {
	return append(rules, NewRule(kind))
}

// SetRuleField sets one field of the rule at index. Tolerance input is parsed
// as a float; empty or unparsable input stores nil. Leaving the
// numeric_tolerance match type clears the tolerance.
func SetRuleField(rules []core.DeltaRule, index int, field RuleField, value string) ([]core.DeltaRule, error) {
	if index < 0 || index >= len(rules) {
		return rules, fmt.Errorf("%w: rule %d of %d", ErrIndexOutOfRange, index, len(rules))
	}
	out := core.CloneRules(rules)
	rule := &out[index]

	switch field {
	case FieldLeftFileColumn:
		rule.LeftFileColumn = value
	case FieldRightFileColumn:
		rule.RightFileColumn = value
	case FieldMatchType:
		mt := core.MatchType(value)
		if !mt.Valid() {
			return rules, fmt.Errorf("%w: %q", ErrInvalidMatchType, value)
		}
		rule.MatchType = mt
		if mt != core.MatchNumericTolerance {
			rule.ToleranceValue = nil
		}
	case FieldToleranceValue:
		rule.ToleranceValue = parseTolerance(value)
	default:
		return rules, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return out, nil
}

func parseTolerance(value string) *float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

// DeleteRule deletes the rule at index, keeping the order of the rest.
func DeleteRule(rules []core.DeltaRule, index int) ([]core.DeltaRule, error) {
	if index < 0 || index >= len(rules) {
		return rules, fmt.Errorf("%w: rule %d of %d", ErrIndexOutOfRange, index, len(rules))
	}
	out := make([]core.DeltaRule, 0, len(rules)-1)
	out = append(out, rules[:index]...)
	return append(out, rules[index+1:]...), nil
}
