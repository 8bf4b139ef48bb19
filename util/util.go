package util

// Byte classifiers shared by the tokenizer. Source text is handled as raw
// bytes; anything outside ASCII is never a valid token start.

func IsDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func IsIdentStart(b byte) bool {
	return IsLetter(b) || b == '_'
}

func IsIdentPart(b byte) bool {
	return IsIdentStart(b) || IsDigit(b)
}

// IsSpace matches the ASCII whitespace set C treats as token separators.
func IsSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
