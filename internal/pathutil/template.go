package pathutil

import (
	"fmt"
	"strings"
)

// RenderTemplate substitutes {name} placeholders in template with values
// from vars. A placeholder with no matching variable is a hard error —
// templates are used for base URLs and auth headers, where a silently
// missing variable would produce a broken request.
func RenderTemplate(template string, vars map[string]string) (string, error) {
	var b strings.Builder

	i := 0
	for i < len(template) {
		start := strings.IndexByte(template[i:], '{')
		if start == -1 {
			b.WriteString(template[i:])
			break
		}

		start += i
		b.WriteString(template[i:start])

		end := strings.IndexByte(template[start:], '}')
		if end == -1 {
			return "", fmt.Errorf("pathutil: unterminated placeholder in template %q", template)
		}

		end += start
		name := template[start+1 : end]

		val, ok := vars[name]
		if !ok {
			return "", fmt.Errorf("pathutil: missing template variable %q", name)
		}

		b.WriteString(val)
		i = end + 1
	}

	return b.String(), nil
}
