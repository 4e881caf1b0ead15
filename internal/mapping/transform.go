package mapping

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
)

// applyTransform executes one TransformSpec against value, per spec.md
// §4.4's four transform kinds.
func applyTransform(spec manifest.TransformSpec, value any) (any, error) {
	switch spec.Kind {
	case manifest.TransformScale:
		return applyScale(spec, value)
	case manifest.TransformFormat:
		return applyFormat(spec, value), nil
	case manifest.TransformEnumMap:
		return applyEnumMap(spec, value), nil
	case manifest.TransformTypeCast:
		return applyTypeCast(spec, value)
	default:
		return value, nil
	}
}

func applyScale(spec manifest.TransformSpec, value any) (any, error) {
	factor, _ := spec.Params["factor"].(float64)

	n, ok := asNumber(value)
	if !ok {
		return nil, llmerr.New(llmerr.KindSerialization, fmt.Sprintf("scale transform requires a numeric input, got %T", value))
	}

	return n * factor, nil
}

func applyFormat(spec manifest.TransformSpec, value any) string {
	template, _ := spec.Params["template"].(string)
	vars, _ := spec.Params["vars"].(map[string]string)

	out := strings.ReplaceAll(template, "{{value}}", stringifyAny(value))

	for name, v := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", v)
	}

	return out
}

func applyEnumMap(spec manifest.TransformSpec, value any) any {
	mappings, _ := spec.Params["mappings"].(map[string]any)
	if mappings == nil {
		return value
	}

	key := stringifyAny(value)

	if mapped, ok := mappings[key]; ok {
		return mapped
	}

	return value
}

func applyTypeCast(spec manifest.TransformSpec, value any) (any, error) {
	targetType, _ := spec.Params["target_type"].(string)

	switch targetType {
	case "string":
		return stringifyAny(value), nil
	case "number":
		switch v := value.(type) {
		case string:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, llmerr.Wrap(llmerr.KindSerialization, "type_cast to number failed", err)
			}

			return n, nil
		default:
			if n, ok := asNumber(value); ok {
				return n, nil
			}

			return nil, llmerr.New(llmerr.KindSerialization, fmt.Sprintf("type_cast to number cannot convert %T", value))
		}
	default:
		return value, nil
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringifyAny(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}

		return "false"
	case nil:
		return ""
	default:
		if n, ok := asNumber(v); ok {
			return strconv.FormatFloat(n, 'g', -1, 64)
		}

		return fmt.Sprintf("%v", v)
	}
}
