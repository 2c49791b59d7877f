package cache

// MatchPattern matches key against a Redis style glob pattern.
// '*' matches any run of characters including '/', '?' matches one
// character, '[abc]' and '[a-z]' match a class, '[^a]' negates it and '\'
// escapes the next character.
func MatchPattern(pattern, key string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if MatchPattern(pattern, key[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(key) == 0 {
				return false
			}
			pattern, key = pattern[1:], key[1:]
		case '[':
			if len(key) == 0 {
				return false
			}
			rest, ok := matchClass(pattern[1:], key[0])
			if !ok {
				return false
			}
			pattern, key = rest, key[1:]
		case '\\':
			if len(pattern) >= 2 {
				pattern = pattern[1:]
			}
			fallthrough
		default:
			if len(key) == 0 || pattern[0] != key[0] {
				return false
			}
			pattern, key = pattern[1:], key[1:]
		}
	}
	return len(key) == 0
}

// matchClass consumes a character class (without the opening '[') and
// returns the remaining pattern and whether c is in the class.
func matchClass(pattern string, c byte) (string, bool) {
	negate := false
	if len(pattern) > 0 && pattern[0] == '^' {
		negate = true
		pattern = pattern[1:]
	}
	matched := false
	for len(pattern) > 0 && pattern[0] != ']' {
		lo := pattern[0]
		if lo == '\\' && len(pattern) >= 2 {
			pattern = pattern[1:]
			lo = pattern[0]
		}
		pattern = pattern[1:]
		hi := lo
		if len(pattern) >= 2 && pattern[0] == '-' && pattern[1] != ']' {
			hi = pattern[1]
			pattern = pattern[2:]
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		if c >= lo && c <= hi {
			matched = true
		}
	}
	if len(pattern) == 0 {
		// unterminated class
		return "", false
	}
	return pattern[1:], matched != negate
}
