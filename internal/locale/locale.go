// Package locale loads the message catalogs players see and formats them
// with golang.org/x/text printers.
package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en-US"

//go:embed locales/*.yaml
var embeddedFS embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds every loaded locale.
type Bundle struct {
	builder  *catalog.Builder
	messages map[string]map[string]string
}

func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS reads locales/*.yaml from catalogFS. The base locale must be
// present.
func LoadFromFS(catalogFS fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(catalogFS, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{
		builder:  catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale))),
		messages: map[string]map[string]string{},
	}
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := b.add(p, file); err != nil {
			return nil, err
		}
	}

	if _, ok := b.messages[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return b, nil
}

func (b *Bundle) add(p string, file catalogFile) error {
	fromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))
	locale := strings.TrimSpace(file.Locale)
	if locale != fromPath {
		return fmt.Errorf("catalog %s: locale %q must match file name %q", p, locale, fromPath)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages map is required", p)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("catalog %s: parse locale tag: %w", p, err)
	}
	if _, exists := b.messages[locale]; exists {
		return fmt.Errorf("catalog %s: locale %q already defined", p, locale)
	}

	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if err := b.builder.SetString(tag, key, value); err != nil {
			return fmt.Errorf("catalog %s: set %q: %w", p, key, err)
		}
		messages[key] = value
	}
	b.messages[locale] = messages
	return nil
}

// Locales returns the loaded locale identifiers, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.messages))
	for locale := range b.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Missing lists the keys a locale lacks, falling back to nothing.
func (b *Bundle) Missing(locale string, keys []string) []string {
	messages := b.messages[locale]
	var out []string
	for _, key := range keys {
		if _, ok := messages[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

// Printer formats catalog keys for one locale. Keys the locale lacks come
// from the base locale.
type Printer struct {
	locale   string
	messages map[string]string
	fallback map[string]string
	printer  *message.Printer
	base     *message.Printer
}

func (b *Bundle) Printer(locale string) (*Printer, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	messages, ok := b.messages[locale]
	if !ok {
		return nil, fmt.Errorf("locale %s is not loaded", locale)
	}
	return &Printer{
		locale:   locale,
		messages: messages,
		fallback: b.messages[BaseLocale],
		printer:  message.NewPrinter(tag, message.Catalog(b.builder)),
		base:     message.NewPrinter(language.MustParse(BaseLocale), message.Catalog(b.builder)),
	}, nil
}

func (p *Printer) Locale() string { return p.locale }

// Text formats key with args. A key no catalog knows is returned without
// its args.
func (p *Printer) Text(key string, args ...any) string {
	if _, ok := p.messages[key]; ok {
		return p.printer.Sprintf(key, args...)
	}
	if _, ok := p.fallback[key]; ok {
		return p.base.Sprintf(key, args...)
	}
	return key
}
