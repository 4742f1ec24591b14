package pfs

import "strings"

// IsAbsolute reports whether p begins with a slash.
func IsAbsolute(p string) bool {
	return strings.HasPrefix(p, "/")
}

// ParsePath splits p on '/', dropping empty tokens but preserving order.
// '.' and '..' are returned as regular tokens; resolving them is the job of
// MakeAbsolute, not this function.
func ParsePath(p string) []string {
	raw := strings.Split(p, "/")
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if t == "" {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// SplitParentLeaf splits a path into its parent directory path and leaf
// name. For "/a/b/c" it returns ("/a/b", "c").
func SplitParentLeaf(p string) (parent, leaf string) {
	tokens := ParsePath(p)
	if len(tokens) == 0 {
		return "/", ""
	}
	leaf = tokens[len(tokens)-1]
	parent = "/" + strings.Join(tokens[:len(tokens)-1], "/")
	return parent, leaf
}

// MakeAbsolute recomposes an absolute path from a current absolute path and
// a relative path, honoring '.' (skip) and '..' (pop, no underflow at root).
// If rel is itself absolute, it is resolved against root instead of
// currentAbs.
func MakeAbsolute(currentAbs, rel string) string {
	var stack []string
	if IsAbsolute(rel) {
		stack = nil
	} else {
		stack = ParsePath(currentAbs)
	}

	for _, tok := range ParsePath(rel) {
		switch tok {
		case ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, tok)
		}
	}

	return "/" + strings.Join(stack, "/")
}
