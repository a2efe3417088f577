package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJSON reads the outermost object in s into v, ignoring code fences or
// chatter around it.
func decodeJSON(s string, v any) error {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in %q", s)
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}
