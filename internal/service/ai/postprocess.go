package ai

import "strings"

const ellipsis = "..."

// Postprocess shapes generated text for a delivery channel.
type Postprocess struct {
	StripBold bool
	// MaxRunes caps the output length including the ellipsis. Zero disables truncation.
	MaxRunes int
}

// ChatChannel is the in-app chat policy.
func ChatChannel() Postprocess {
	return Postprocess{StripBold: true}
}

// SMSChannel is the outbound SMS policy.
func SMSChannel(maxRunes int) Postprocess {
	return Postprocess{StripBold: true, MaxRunes: maxRunes}
}

// Apply runs the configured transformations on text.
func (p Postprocess) Apply(text string) string {
	if p.StripBold {
		text = strings.ReplaceAll(text, "**", "")
	}
	if p.MaxRunes > 0 {
		text = truncate(text, p.MaxRunes)
	}
	return text
}

func truncate(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if maxRunes <= len(ellipsis) {
		return string(runes[:maxRunes])
	}
	return strings.TrimRight(string(runes[:maxRunes-len(ellipsis)]), " ") + ellipsis
}
