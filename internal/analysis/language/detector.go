package language

import (
	"regexp"
	"strings"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
)

// Branch names the rule that produced a classification.
type Branch string

const (
	BranchEthiopic Branch = "ethiopic-script"
	BranchTigrinya Branch = "tigrinya-glyphs"
	BranchOromo    Branch = "oromo-lexicon"
	BranchDefault  Branch = "default"
)

// Detector classifies free text into a supported language.
type Detector interface {
	Detect(text string) language.Code
}

// Result carries the classification plus the evidence behind it.
type Result struct {
	Language      language.Code
	Branch        Branch
	OromoTokens   int
	OromoPatterns int
	// TigrinyaShadowed is set when the Tigrinya glyph set matched but the
	// Ethiopic block check classified the text first.
	TigrinyaShadowed bool
}

const (
	ethiopicLow  = 0x1200
	ethiopicHigh = 0x137F
)

// Every rune in this set also lies in the Ethiopic block, so the Tigrinya
// branch cannot fire for them while the Amharic check runs first.
var tigrinyaGlyphs = map[rune]struct{}{
	0x1275: {}, // ት
	0x1295: {}, // ን
	0x12A5: {}, // እ
}

var oromoTokens = []string{
	"akkam", "maal", "eessa", "yeroo", "bishaan", "qonnaa", "midhaan",
	"lafti", "rooba", "aduu", "qorichi", "dhukkuba", "raammoo",
	"gargaarsa", "barbaachisa", "dandeessa", "jira", "hin", "akka",
	"kana", "sana", "kun", "sun", "dhiira", "dubartii", "gaarii",
}

var oromoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bdhaa?\b`),
	regexp.MustCompile(`\bqaa?\b`),
	regexp.MustCompile(`\btii?\b`),
	regexp.MustCompile(`\bchaa?\b`),
	regexp.MustCompile(`\bnyaa?\b`),
	regexp.MustCompile(`\bitti\b`),
	regexp.MustCompile(`\birraa\b`),
	regexp.MustCompile(`\bkeessa\b`),
}

// Heuristic is the rule-based detector. The zero value is ready to use and
// safe for concurrent callers.
type Heuristic struct{}

// NewHeuristic returns the rule-based detector.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Detect implements Detector.
func (h *Heuristic) Detect(text string) language.Code {
	return h.Analyze(text).Language
}

// Analyze classifies text and reports which rule decided it.
func (h *Heuristic) Analyze(text string) Result {
	hasEthiopic, hasTigrinya := scanScripts(text)

	if hasEthiopic {
		return Result{Language: language.Amharic, Branch: BranchEthiopic, TigrinyaShadowed: hasTigrinya}
	}
	if hasTigrinya {
		return Result{Language: language.Tigrinya, Branch: BranchTigrinya}
	}

	clean := strings.ToLower(strings.TrimSpace(text))
	if clean == "" {
		return Result{Language: language.Default, Branch: BranchDefault}
	}

	tokens := 0
	for _, token := range oromoTokens {
		if strings.Contains(clean, token) {
			tokens++
		}
	}

	patterns := 0
	for _, pattern := range oromoPatterns {
		if pattern.MatchString(clean) {
			patterns++
		}
	}

	result := Result{Language: language.Default, Branch: BranchDefault, OromoTokens: tokens, OromoPatterns: patterns}
	if tokens >= 2 || (tokens >= 1 && patterns >= 1) {
		result.Language = language.Oromo
		result.Branch = BranchOromo
	}
	return result
}

func scanScripts(text string) (ethiopic, tigrinya bool) {
	for _, r := range text {
		if r >= ethiopicLow && r <= ethiopicHigh {
			ethiopic = true
		}
		if _, ok := tigrinyaGlyphs[r]; ok {
			tigrinya = true
		}
		if ethiopic && tigrinya {
			return
		}
	}
	return
}

var defaultDetector = NewHeuristic()

// Detect classifies text with the default heuristic detector.
func Detect(text string) language.Code {
	return defaultDetector.Detect(text)
}

// Analyze runs the default heuristic detector and returns its evidence.
func Analyze(text string) Result {
	return defaultDetector.Analyze(text)
}
