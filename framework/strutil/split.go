// Package strutil holds small string helpers shared by the managers.
package strutil

import "strings"

// SplitTrim splits input on sep, trims every part and drops empty ones.
//
//	strutil.SplitTrim("Prefabs, Prefabs/UI, ", ',') // ["Prefabs", "Prefabs/UI"]
func SplitTrim(input string, sep rune) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, string(sep))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
