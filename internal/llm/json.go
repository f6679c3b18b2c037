package llm

import "strings"

// ExtractJSONObject pulls the JSON object out of an LLM reply. Models
// wrap their output in markdown code fences or surround it with prose,
// so after stripping fences the text is cut down to the outermost brace
// pair. Returns "" when no object can be found; the caller decides
// whether the remainder actually parses.
func ExtractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
