package sexy

import "fmt"

// Match reports whether actual matches pattern. Atoms match atoms of the same
// type and text. A bare ellipsis matches any datum; inside a list it matches
// zero or more consecutive items.
func Match(pattern, actual *Node) bool {
	if pattern.Type == NodeEllipsis {
		return true
	}
	if pattern.Type != actual.Type {
		return false
	}
	if pattern.Type != NodeList {
		return pattern.Text == actual.Text
	}
	return matchItems(pattern.Items, actual.Items)
}

func matchItems(patterns, actuals []*Node) bool {
	if len(patterns) == 0 {
		return len(actuals) == 0
	}
	if patterns[0].Type == NodeEllipsis {
		for skip := 0; skip <= len(actuals); skip++ {
			if matchItems(patterns[1:], actuals[skip:]) {
				return true
			}
		}
		return false
	}
	if len(actuals) == 0 || !Match(patterns[0], actuals[0]) {
		return false
	}
	return matchItems(patterns[1:], actuals[1:])
}

// Mismatch describes the first place where actual fails to match pattern, or
// returns "" when it matches.
func Mismatch(pattern, actual *Node) string {
	if Match(pattern, actual) {
		return ""
	}
	return mismatchAt("root", pattern, actual)
}

func mismatchAt(path string, pattern, actual *Node) string {
	if pattern.Type != actual.Type {
		return fmt.Sprintf("at %s: expected %s %s, got %s %s", path, pattern.Type, pattern, actual.Type, actual)
	}
	if pattern.Type != NodeList {
		return fmt.Sprintf("at %s: expected %s, got %s", path, pattern, actual)
	}
	for i, p := range pattern.Items {
		if p.Type == NodeEllipsis {
			break
		}
		if i >= len(actual.Items) {
			return fmt.Sprintf("at %s: expected %s, got end of list", path, p)
		}
		if !Match(p, actual.Items[i]) {
			return mismatchAt(fmt.Sprintf("%s[%d]", path, i), p, actual.Items[i])
		}
	}
	return fmt.Sprintf("at %s: expected %s, got %s", path, pattern, actual)
}
