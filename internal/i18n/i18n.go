// Package i18n provides the UI text catalog: fixed strings (button labels,
// prompts, generic errors) and the defaults that seed editable settings.
// Messages live in embedded YAML locale files and are read through go-i18n.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog translates message IDs for one language. A Catalog is immutable
// and safe for concurrent use.
type Catalog struct {
	lang      string
	localizer *i18n.Localizer
}

// New loads every embedded locale and returns a catalog for lang, falling
// back to English for unknown languages or missing messages.
func New(lang string) (*Catalog, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile(path.Join("locales", f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", f.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", f.Name(), err)
		}
	}

	return &Catalog{
		lang:      lang,
		localizer: i18n.NewLocalizer(bundle, lang, language.English.String()),
	}, nil
}

// MustNew is New for process startup and tests; it panics if the embedded
// locales are broken.
func MustNew(lang string) *Catalog {
	c, err := New(lang)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lang() string {
	return c.lang
}

// T translates messageID. Unknown IDs are returned unchanged.
func (c *Catalog) T(messageID string) string {
	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	return msg
}

// Has reports whether messageID exists in the catalog language or English.
func (c *Catalog) Has(messageID string) bool {
	_, err := c.localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	return err == nil
}
