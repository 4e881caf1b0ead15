// Package mapping implements C4: producing a provider-specific request
// JSON object from a canonical request using a provider's declarative
// parameter-mapping rules. It never panics (spec.md P1) — an absent
// canonical value simply elides its rule.
package mapping

import (
	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
	"github.com/arrowhead-dev/llmbridge/internal/matchexpr"
	"github.com/arrowhead-dev/llmbridge/internal/pathutil"
)

// Build runs the mapping engine: for every entry in provider's
// ParameterMapping, it extracts the named canonical value from req and
// applies the mapping rule, writing into a fresh payload document.
func Build(req *canonical.Request, provider *manifest.Provider) (map[string]any, error) {
	payload := make(map[string]any)

	conditionRoot := map[string]any{
		"stream":        req.Stream,
		"has_functions": len(req.Tools) > 0,
	}

	for name, rule := range provider.ParameterMapping {
		value, present := extractCanonicalValue(req, name, provider)

		switch rule.Kind {
		case manifest.RuleDirect:
			if !present {
				continue
			}

			if err := pathutil.Set(payload, rule.TargetPath, value); err != nil {
				return nil, err
			}
		case manifest.RuleConditional:
			if err := applyConditional(payload, rule, value, present, conditionRoot); err != nil {
				return nil, err
			}
		case manifest.RuleTransform:
			if err := applyTransformRule(payload, rule, value, present); err != nil {
				return nil, err
			}
		}
	}

	return payload, nil
}

func applyConditional(payload map[string]any, rule manifest.MappingRule, value any, present bool, conditionRoot map[string]any) error {
	if !present {
		return nil
	}

	for _, clause := range rule.Conditions {
		if clause.Condition != "" && !matchexpr.Parse(clause.Condition).Eval(conditionRoot) {
			continue
		}

		out := value

		if clause.Transform != nil {
			transformed, err := applyTransform(*clause.Transform, out)
			if err != nil {
				return err
			}

			out = transformed
		}

		return pathutil.Set(payload, clause.TargetPath, out)
	}

	return nil
}

func applyTransformRule(payload map[string]any, rule manifest.MappingRule, value any, present bool) error {
	if !present {
		if def, ok := rule.Transform.Params["default"]; ok {
			value = def
			present = true
		}
	}

	if !present {
		return nil
	}

	out, err := applyTransform(rule.Transform, value)
	if err != nil {
		return err
	}

	return pathutil.Set(payload, rule.TargetPath, out)
}
