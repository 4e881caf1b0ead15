package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arrowhead-dev/llmbridge/internal/matchexpr"
)

// Validate checks a decoded Manifest against the invariants of spec.md
// §3 (I1-I5; I6 is a runtime elision rule, not a load-time check) plus
// the extra per-mapping-rule and per-expression checks named in §4.15.
// It collects every violation it finds rather than stopping at the
// first, so a misconfigured manifest reports everything wrong with it
// in one pass.
func Validate(m *Manifest) error {
	var errs []error

	for id, model := range m.Models {
		if _, ok := m.Providers[model.Provider]; !ok { // I1
			errs = append(errs, fmt.Errorf("models.%s: provider %q does not exist", id, model.Provider))
		}
	}

	for name, p := range m.Providers {
		errs = append(errs, validateBaseURL(name, p.BaseURL)...)      // I2
		errs = append(errs, validateResponsePaths(name, p)...)        // I3
		errs = append(errs, validateMappingRules(name, p)...)         // I5 + C15 extras
		errs = append(errs, validateStreaming(name, p.Streaming)...)  // I4 + expression syntax
	}

	return errors.Join(errs...)
}

func validateBaseURL(providerName string, bu BaseURLConfig) []error {
	if bu.Template == "" {
		return nil
	}

	var errs []error

	for _, name := range extractTemplateVars(bu.Template) {
		if _, ok := bu.ConnectionVars[name]; !ok {
			errs = append(errs, fmt.Errorf(
				"providers.%s.base_url: template variable %q is not declared in connection_vars",
				providerName, name))
		}
	}

	return errs
}

// extractTemplateVars returns the {name} placeholders appearing in
// template, in order of first appearance, without substituting them.
// Mirrors pathutil.RenderTemplate's scanning logic.
func extractTemplateVars(template string) []string {
	var names []string

	i := 0
	for i < len(template) {
		start := strings.IndexByte(template[i:], '{')
		if start == -1 {
			break
		}

		start += i

		end := strings.IndexByte(template[start+1:], '}')
		if end == -1 {
			break
		}

		end += start + 1
		names = append(names, template[start+1:end])
		i = end + 1
	}

	return names
}

func validateResponsePaths(providerName string, p Provider) []error {
	if _, ok := p.ResponsePaths["content"]; !ok { // I3
		return []error{fmt.Errorf("providers.%s.response_paths: missing required %q key", providerName, "content")}
	}

	return nil
}

func validateMappingRules(providerName string, p Provider) []error {
	var errs []error

	for canonicalName, rule := range p.ParameterMapping {
		path := fmt.Sprintf("providers.%s.parameter_mapping.%s", providerName, canonicalName)

		switch rule.Kind {
		case RuleDirect:
			if rule.TargetPath == "" {
				errs = append(errs, fmt.Errorf("%s: target_path must be non-empty", path))
			}
		case RuleConditional:
			if len(rule.Conditions) == 0 {
				errs = append(errs, fmt.Errorf("%s: conditions must be non-empty", path))
			}

			for i, clause := range rule.Conditions {
				if clause.Condition == "" {
					errs = append(errs, fmt.Errorf("%s.conditions[%d]: condition must be non-empty", path, i))
				} else if !matchexpr.Validate(clause.Condition) {
					errs = append(errs, fmt.Errorf("%s.conditions[%d]: condition %q does not parse", path, i, clause.Condition))
				}

				if clause.TargetPath == "" {
					errs = append(errs, fmt.Errorf("%s.conditions[%d]: target_path must be non-empty", path, i))
				}
			}
		case RuleTransform:
			if rule.TargetPath == "" {
				errs = append(errs, fmt.Errorf("%s: transform target_path must be non-empty", path))
			}
		}
	}

	return errs
}

func validateStreaming(providerName string, sc StreamingConfig) []error {
	var errs []error

	if sc.EventFormat != "" { // I4
		if sc.ContentPath == "" && sc.ToolCallPath == "" && len(sc.EventMap) == 0 {
			errs = append(errs, fmt.Errorf(
				"providers.%s.streaming: event_format is set but none of content_path, tool_call_path, event_map is present",
				providerName))
		}
	}

	if sc.FrameSelector != "" && !matchexpr.Validate(sc.FrameSelector) {
		errs = append(errs, fmt.Errorf("providers.%s.streaming.frame_selector: %q does not parse", providerName, sc.FrameSelector))
	}

	if sc.StopCondition != "" && !matchexpr.Validate(sc.StopCondition) {
		errs = append(errs, fmt.Errorf("providers.%s.streaming.stop_condition: %q does not parse", providerName, sc.StopCondition))
	}

	if sc.Accumulator != nil && sc.Accumulator.FlushOn != "" && !matchexpr.Validate(sc.Accumulator.FlushOn) {
		errs = append(errs, fmt.Errorf("providers.%s.streaming.accumulator.flush_on: %q does not parse", providerName, sc.Accumulator.FlushOn))
	}

	for i, rule := range sc.EventMap {
		if rule.Match != "" && !matchexpr.Validate(rule.Match) {
			errs = append(errs, fmt.Errorf("providers.%s.streaming.event_map[%d].match: %q does not parse", providerName, i, rule.Match))
		}
	}

	return errs
}
