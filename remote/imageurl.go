package remote

import "strings"

// sizingParams are query parameters image servers use to pick a thumbnail
// size. The proxy fetches the original instead.
var sizingParams = map[string]bool{
	"size":   true,
	"width":  true,
	"height": true,
}

// NormalizeImageURL strips numeric size, width and height query parameters
// from src, keeping every other parameter in its original order.
func NormalizeImageURL(src string) string {
	base, query, ok := strings.Cut(src, "?")
	if !ok {
		return src
	}
	query, fragment, hasFragment := strings.Cut(query, "#")

	var kept []string
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		if sizingParams[key] && isDigits(value) {
			continue
		}
		kept = append(kept, part)
	}

	out := base
	if len(kept) > 0 {
		out += "?" + strings.Join(kept, "&")
	}
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
