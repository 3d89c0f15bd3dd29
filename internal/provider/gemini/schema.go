package gemini

// responseSchema converts a JSON-Schema map into the OpenAPI subset Gemini
// accepts as a response_schema constraint. Unsupported keywords
// (additionalProperties, const, length and count bounds) are dropped; the
// full schema is still enforced locally after parsing.
func responseSchema(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case "type", "enum", "required", "description":
			out[k] = v
		case "properties":
			props, ok := v.(map[string]any)
			if !ok {
				continue
			}
			cleaned := make(map[string]any, len(props))
			for name, sub := range props {
				if subMap, ok := sub.(map[string]any); ok {
					cleaned[name] = responseSchema(subMap)
				}
			}
			out[k] = cleaned
		case "items":
			if subMap, ok := v.(map[string]any); ok {
				out[k] = responseSchema(subMap)
			}
		}
	}
	return out
}
