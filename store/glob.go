package store

// MatchGlob reports whether name matches pattern using the shell-style
// glob spec.md §4.F specifies for KEYS: '*' matches any run of bytes
// (including none), '?' matches exactly one byte, and '\' escapes the
// byte that follows it so '*', '?', and '\' themselves can be matched
// literally. Keys are raw bytes per the glossary, not runes, so
// matching is done byte-by-byte rather than decoding UTF-8 - a
// multibyte key matches '?' once per byte, as the wire format and the
// glossary define it.
func MatchGlob(pattern, name string) bool {
	return matchGlob([]byte(pattern), []byte(name))
}

func matchGlob(pattern, name []byte) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse consecutive stars, then try every split point.
			for len(pattern) > 1 && pattern[1] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchGlob(pattern[1:], name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(name) == 0 {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		case '\\':
			if len(pattern) < 2 {
				return false
			}
			if len(name) == 0 || name[0] != pattern[1] {
				return false
			}
			pattern = pattern[2:]
			name = name[1:]
		default:
			if len(name) == 0 || name[0] != pattern[0] {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		}
	}
	return len(name) == 0
}
