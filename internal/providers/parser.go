package providers

import "strings"

// ProviderRef is one entry of a provider list such as "gemini|openai:gpt-4o-mini".
// Model, when set, overrides the configured model for that entry.
type ProviderRef struct {
	Raw   string
	Name  string
	Model string
}

// ParseProviderList splits a "|" separated list in preference order. An empty
// list falls back to the mock provider so a bare checkout still runs.
func ParseProviderList(raw string) []ProviderRef {
	var out []ProviderRef
	for _, p := range strings.Split(raw, "|") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, model, _ := strings.Cut(p, ":")
		out = append(out, ProviderRef{
			Raw:   p,
			Name:  strings.ToLower(strings.TrimSpace(name)),
			Model: strings.TrimSpace(model),
		})
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
