package frontmatter

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
)

// Merge layers frontmatter maps. Later layers win on key conflicts; nil layers are skipped.
func Merge(layers ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// Strings flattens fields into template variables. Scalars use their natural
// text form; lists join with ", "; nested maps are skipped.
func Strings(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if s, ok := scalarString(v); ok {
			out[k] = s
			continue
		}
		if list, ok := stringList(v); ok {
			out[k] = strings.Join(list, ", ")
		}
	}
	return out
}

// String returns fields[key] as text when it is a scalar.
func String(fields map[string]any, key string) string {
	s, _ := scalarString(fields[key])
	return s
}

// Keywords reads the `keywords` field, accepting a list or a comma separated string.
func Keywords(fields map[string]any) []string {
	v, ok := fields["keywords"]
	if !ok {
		return nil
	}
	var raw []string
	if s, ok := v.(string); ok {
		raw = strings.Split(s, ",")
	} else if list, ok := stringList(v); ok {
		raw = list
	}
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch vv := v.(type) {
	case nil:
		return "", false
	case string:
		return vv, true
	case bool:
		return strconv.FormatBool(vv), true
	case int:
		return strconv.Itoa(vv), true
	case int64:
		return strconv.FormatInt(vv, 10), true
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), true
	case fmt.Stringer:
		return vv.String(), true
	}
	return "", false
}

func stringList(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
