package answer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var defaultPhrases []byte

type Locale struct {
	NotFound string   `yaml:"not_found"`
	Apology  string   `yaml:"apology"`
	Triggers []string `yaml:"triggers"`
}

// Catalog holds the sentinel, "no answer" trigger phrases and the localized fallback texts.
type Catalog struct {
	Sentinel      string            `yaml:"sentinel"`
	DefaultLocale string            `yaml:"default_locale"`
	Locales       map[string]Locale `yaml:"locales"`

	triggers []string
}

func DefaultCatalog() (*Catalog, error) {
	return parseCatalog(defaultPhrases)
}

// LoadCatalog reads an override file on top of the embedded defaults. An empty path
// returns the defaults. Locales missing from the file keep their default entries.
func LoadCatalog(path string) (*Catalog, error) {
	base, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrase catalog: %w", err)
	}
	override, err := parseCatalog(raw)
	if err != nil {
		return nil, err
	}
	if override.Sentinel != "" {
		base.Sentinel = override.Sentinel
	}
	if override.DefaultLocale != "" {
		base.DefaultLocale = override.DefaultLocale
	}
	for tag, loc := range override.Locales {
		cur := base.Locales[tag]
		if loc.NotFound != "" {
			cur.NotFound = loc.NotFound
		}
		if loc.Apology != "" {
			cur.Apology = loc.Apology
		}
		if len(loc.Triggers) > 0 {
			cur.Triggers = loc.Triggers
		}
		base.Locales[tag] = cur
	}
	base.index()
	return base, nil
}

func parseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse phrase catalog: %w", err)
	}
	if c.Locales == nil {
		c.Locales = map[string]Locale{}
	}
	c.index()
	return &c, nil
}

func (c *Catalog) index() {
	c.triggers = c.triggers[:0]
	for _, loc := range c.Locales {
		for _, t := range loc.Triggers {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				c.triggers = append(c.triggers, t)
			}
		}
	}
}

// Insufficient reports whether a generated answer should be treated as "no answer".
// Trigger phrases of every locale apply, since the model may answer in any language.
func (c *Catalog) Insufficient(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, c.Sentinel) {
		return true
	}
	low := strings.ToLower(text)
	if c.Sentinel != "" && strings.Contains(low, strings.ToLower(c.Sentinel)) {
		return true
	}
	for _, t := range c.triggers {
		if strings.Contains(low, t) {
			return true
		}
	}
	return false
}

func (c *Catalog) NotFound(locale, question string) string {
	return strings.ReplaceAll(c.locale(locale).NotFound, "{question}", question)
}

func (c *Catalog) Apology(locale string) string {
	return c.locale(locale).Apology
}

func (c *Catalog) locale(tag string) Locale {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if loc, ok := c.Locales[tag]; ok {
		return loc
	}
	if loc, ok := c.Locales[c.DefaultLocale]; ok {
		return loc
	}
	return c.Locales["en"]
}
