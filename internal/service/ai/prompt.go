package ai

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is the model input for a single advisory turn.
type Prompt struct {
	Language    language.Code
	System      string
	Question    string
	Instruction string
}

// Query is everything after the system instruction.
func (p Prompt) Query() string {
	return "User question: " + p.Question + "\n\n" + p.Instruction
}

// Text renders the prompt as one block, system instruction first.
func (p Prompt) Text() string {
	return p.System + "\n\n" + p.Query()
}

// PromptBook holds the per-language system instructions.
type PromptBook struct {
	Fallback     string                   `yaml:"fallback"`
	Instructions map[language.Code]string `yaml:"instructions"`
}

// LoadPromptBook parses a YAML prompt book. An English instruction is required.
func LoadPromptBook(raw []byte) (*PromptBook, error) {
	var book PromptBook
	if err := yaml.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("parse prompt book: %w", err)
	}
	if book.Instructions[language.English] == "" {
		return nil, fmt.Errorf("prompt book has no %q instruction", language.English)
	}
	return &book, nil
}

// DefaultPromptBook returns the embedded prompt book.
func DefaultPromptBook() *PromptBook {
	book, err := LoadPromptBook(defaultPrompts)
	if err != nil {
		panic(err)
	}
	return book
}

// Build assembles the prompt for message in the given language.
func (b *PromptBook) Build(message string, code language.Code) Prompt {
	system, ok := b.Instructions[code]
	if !ok {
		system = b.Instructions[language.English]
	}
	return Prompt{
		Language:    code,
		System:      system,
		Question:    message,
		Instruction: fmt.Sprintf("Please respond ONLY in %s.", code.EnglishName()),
	}
}
