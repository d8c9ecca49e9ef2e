package i18n

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
)

//go:embed messages.yaml
var defaultMessages []byte

// Catalog holds UI strings per language.
type Catalog struct {
	dict map[language.Code]map[string]string
}

// Load parses a YAML document keyed by language tag.
func Load(raw []byte) (*Catalog, error) {
	var doc map[string]map[string]string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}

	c := &Catalog{dict: make(map[language.Code]map[string]string, len(doc))}
	for tag, messages := range doc {
		code := language.Parse(tag)
		if code == language.Default && tag != string(language.English) {
			return nil, fmt.Errorf("unsupported language %q in messages", tag)
		}
		c.dict[code] = messages
	}
	if len(c.dict[language.English]) == 0 {
		return nil, fmt.Errorf("messages missing english strings")
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(defaultMessages)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// T looks key up in code, then English, then returns the key.
func (c *Catalog) T(code language.Code, key string) string {
	if v, ok := c.dict[code][key]; ok {
		return v
	}
	if v, ok := c.dict[language.English][key]; ok {
		return v
	}
	return key
}

// Dictionary returns every English key resolved for code.
func (c *Catalog) Dictionary(code language.Code) map[string]string {
	out := make(map[string]string, len(c.dict[language.English]))
	for key, v := range c.dict[language.English] {
		out[key] = v
	}
	for key, v := range c.dict[code] {
		out[key] = v
	}
	return out
}

// T uses the embedded catalog.
func T(code language.Code, key string) string {
	return Default().T(code, key)
}
