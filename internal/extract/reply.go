package extract

// firstJSONObject returns the first balanced {...} region of the reply.
// Braces inside JSON strings are ignored; an unbalanced region (truncated
// reply) reports false.
func firstJSONObject(reply string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(reply); i++ {
		ch := reply[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}

			continue
		}

		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}

			depth++
		case '}':
			if start < 0 {
				continue
			}

			depth--
			if depth == 0 {
				return reply[start : i+1], true
			}
		}
	}

	return "", false
}
