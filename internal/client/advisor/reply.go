package advisor

import (
	"context"
	"net/http"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
)

// Outcome says whether the reply text came from the model.
type Outcome string

const (
	Generated Outcome = "generated"
	Fallback  Outcome = "fallback"
)

// Failure classifies why a fallback was used.
type Failure string

const (
	FailureNone      Failure = ""
	FailureTransport Failure = "transport"
	FailureStatus    Failure = "status"
	FailureMalformed Failure = "malformed"
	FailureEmpty     Failure = "empty"
)

// Reply is the result of one advisory request. Text is always displayable.
type Reply struct {
	Text       string
	Language   language.Code
	Outcome    Outcome
	Failure    Failure
	StatusCode int
	Err        error
}

// OK reports whether the text was generated.
func (r Reply) OK() bool {
	return r.Outcome == Generated
}

// Transient reports failures worth trying again later.
func (r Reply) Transient() bool {
	switch r.Failure {
	case FailureTransport:
		return true
	case FailureStatus:
		return r.StatusCode >= http.StatusInternalServerError || r.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// Responder produces one reply per user turn.
type Responder interface {
	Respond(ctx context.Context, message string, code language.Code) Reply
}

const emptyReplyText = "I apologize, but I cannot provide a response at the moment. Please try again."

var fallbackTexts = map[language.Code]string{
	language.English: "I'm having trouble connecting right now. Please try again in a moment.",
	language.Amharic: "አሁን ግንኙነት ችግር አለኝ። እባክዎ ትንሽ ቆይተው ይሞክሩ።",
	language.Oromo:   "Yeroo ammaa walqunnamtii rakkoo qaba. Maaloo yeroo muraasaaf eegdanii yaali.",
}

// FallbackText returns the connection-trouble message for code. Codes
// without a translation get the English text.
func FallbackText(code language.Code) string {
	if text, ok := fallbackTexts[code]; ok {
		return text
	}
	return fallbackTexts[language.English]
}

func fallback(code language.Code, failure Failure, status int, err error) Reply {
	text := FallbackText(code)
	if failure == FailureEmpty {
		text = emptyReplyText
	}
	return Reply{
		Text:       text,
		Language:   code,
		Outcome:    Fallback,
		Failure:    failure,
		StatusCode: status,
		Err:        err,
	}
}
