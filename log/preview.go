package log

// defaultMaxLoggedStrLen limits preview length to prevent log spam.
const defaultMaxLoggedStrLen = 100

// Preview returns a log-safe preview of str.
//
// maxLen is optional and defaults to defaultMaxLoggedStrLen.
// Returns:
//   - Original string if len <= effective max length
//   - Truncated string if len > effective max length
func Preview(str string, maxLen ...int) string {
	l := defaultMaxLoggedStrLen
	if len(maxLen) > 0 {
		l = maxLen[0]
	}
	return previewWithLengthAndEllipsis(str, l)
}

// PreviewBytes is Preview for raw response bodies. Only the previewed
// prefix of b is converted to a string.
func PreviewBytes(b []byte, maxLen ...int) string {
	l := defaultMaxLoggedStrLen
	if len(maxLen) > 0 {
		l = maxLen[0]
	}
	if len(b) > l+1 {
		b = b[:l+1]
	}
	return previewWithLengthAndEllipsis(string(b), l)
}

// previewWithLengthAndEllipsis truncates str to maxLen for logging.
func previewWithLengthAndEllipsis(str string, maxLen int) string {
	if len(str) <= maxLen {
		return str
	}
	if maxLen <= 3 {
		return str[:maxLen]
	}
	return str[:maxLen-3] + "..."
}
