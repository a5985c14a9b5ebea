package core

// DeepCopy returns a copy of v in which every nested map and slice of the
// common JSON-like shapes is freshly allocated. Other values (scalars,
// pointers, structs) are returned as-is; *AgentResult values are cloned.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyMap(val)
	case []any:
		if val == nil {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = DeepCopy(item)
		}
		return out
	case map[string]string:
		if val == nil {
			return val
		}
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case []string:
		if val == nil {
			return val
		}
		return append([]string(nil), val...)
	case []map[string]any:
		if val == nil {
			return val
		}
		out := make([]map[string]any, len(val))
		for i, m := range val {
			out[i] = CopyMap(m)
		}
		return out
	case []*AgentResult:
		return cloneResults(val)
	case *AgentResult:
		return val.Clone()
	default:
		return v
	}
}

// CopyMap deep-copies a string keyed map. A nil map yields an empty map.
func CopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepCopy(v)
	}
	return out
}

func cloneResults(rs []*AgentResult) []*AgentResult {
	out := make([]*AgentResult, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}
