// Package i18n renders localized user messages for domain error codes.
package i18n

import (
	"bytes"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/branching.ink/internal/platform/i18n/catalog"
)

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale    string
	messages  map[Code]string
	templates sync.Map
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}
)

// GetCatalog returns the catalog negotiated for the requested locale.
// Unknown locales resolve to en-US.
func GetCatalog(locale string) *Catalog {
	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(locale, "errors")

	catalogsMu.RLock()
	existing, ok := catalogs[resolved]
	catalogsMu.RUnlock()
	if ok {
		return existing
	}

	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if existing, ok := catalogs[resolved]; ok {
		return existing
	}
	built := NewCatalog(resolved, messages)
	catalogs[resolved] = built
	return built
}

// NewCatalog creates a catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{locale: locale, messages: cloned}
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	raw, ok := c.messages[code]
	if !ok {
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	var tmpl *template.Template
	if cached, ok := c.templates.Load(code); ok {
		tmpl = cached.(*template.Template)
	} else {
		parsed, err := template.New(code).Option("missingkey=zero").Parse(raw)
		if err != nil {
			return raw
		}
		c.templates.Store(code, parsed)
		tmpl = parsed
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return raw
	}
	return buf.String()
}
