package channel

import (
	"regexp"
	"strings"
)

// ansiPattern strips CSI, OSC and SGR terminal escape sequences. It is
// applied to the fully assembled slice after a read-until completes, so a
// sequence split across two transport reads is still stripped correctly.
var ansiPattern = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\)|[@-Z\\-_])`)

// normalize implements the output-normalizer contract: strip escape
// sequences, strip a leading command-echo line, strip a trailing prompt
// line, normalize CRLF to LF, and trim a single trailing LF. Each step is
// independent and applied in this exact order.
func normalize(raw, command, prompt string) string {
	out := ansiPattern.ReplaceAllString(raw, "")

	if first, rest, ok := cutFirstLine(out); ok {
		if strings.TrimRight(first, "\r\n") == strings.TrimSpace(command) {
			out = strings.TrimLeft(rest, "\r\n")
		}
	}

	trimmedPrompt := strings.TrimRight(prompt, "\r\n ")
	if idx := strings.LastIndexAny(out, "\n"); idx >= 0 {
		lastLine := strings.TrimRight(out[idx+1:], "\r\n ")
		if lastLine == trimmedPrompt {
			out = out[:idx]
		}
	} else if strings.TrimRight(out, "\r\n ") == trimmedPrompt {
		out = ""
	}

	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = strings.TrimSuffix(out, "\n")

	return out
}

// cutFirstLine splits s into its first line (without the trailing
// terminator) and the remainder. ok is false if s is empty.
func cutFirstLine(s string) (first, rest string, ok bool) {
	if s == "" {
		return "", "", false
	}
	idx := strings.IndexAny(s, "\r\n")
	if idx < 0 {
		return s, "", true
	}
	return s[:idx], s[idx:], true
}
