package language

import (
	"strings"

	"golang.org/x/text/language"
)

// Code identifies one of the supported advisory languages.
type Code string

const (
	English  Code = "en"
	Amharic  Code = "am"
	Oromo    Code = "or"
	Tigrinya Code = "ti"

	Default = English
)

var (
	tagAmharic  = language.MustParseBase("am")
	tagOromo    = language.MustParseBase("om")
	tagTigrinya = language.MustParseBase("ti")
	tagEnglish  = language.MustParseBase("en")
)

// All returns the supported codes in display order.
func All() []Code {
	return []Code{English, Amharic, Oromo, Tigrinya}
}

// Parse maps a wire code, alias or BCP-47 tag to a supported Code.
// Anything unrecognised is Default.
func Parse(raw string) Code {
	if code, ok := Lookup(raw); ok {
		return code
	}
	return Default
}

// Lookup is Parse without the fallback. "or" is the Oromo wire code used by
// the front-end, so it is matched before tag parsing (where it would resolve
// to Odia).
func Lookup(raw string) (Code, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch Code(value) {
	case English, Amharic, Oromo, Tigrinya:
		return Code(value), true
	case "":
		return "", false
	}

	tag, err := language.Parse(value)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	switch base {
	case tagAmharic:
		return Amharic, true
	case tagOromo:
		return Oromo, true
	case tagTigrinya:
		return Tigrinya, true
	case tagEnglish:
		return English, true
	default:
		return "", false
	}
}

// Valid reports whether c is one of the supported codes.
func (c Code) Valid() bool {
	switch c {
	case English, Amharic, Oromo, Tigrinya:
		return true
	}
	return false
}

// EnglishName is used inside prompts ("respond only in ...").
func (c Code) EnglishName() string {
	switch c {
	case Amharic:
		return "Amharic"
	case Oromo:
		return "Afaan Oromoo"
	case Tigrinya:
		return "Tigrinya"
	default:
		return "English"
	}
}

// NativeName is the label shown on language badges.
func (c Code) NativeName() string {
	switch c {
	case Amharic:
		return "አማርኛ"
	case Oromo:
		return "Afaan Oromoo"
	case Tigrinya:
		return "ትግርኛ"
	default:
		return "English"
	}
}

func (c Code) String() string {
	return string(c)
}
