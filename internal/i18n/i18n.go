// Package i18n resolves localized bot texts from YAML catalogs.
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
}

// Catalog stores all loaded translations keyed by language.
type Catalog struct {
	translations map[string]map[string]string
	defaultLang  string
}

// LoadFromDir loads every *.yaml file in dir. Each file maps a language code
// to a (possibly nested) tree of message strings.
func LoadFromDir(dir, defaultLang string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir %s: %w", dir, err)
	}

	translations := make(map[string]map[string]string)

	var names []string
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("i18n: read file %s: %w", path, err)
		}

		var raw map[string]map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("i18n: parse file %s: %w", path, err)
		}

		for lang, tree := range raw {
			lang = strings.ToLower(strings.TrimSpace(lang))
			if lang == "" {
				continue
			}

			if translations[lang] == nil {
				translations[lang] = make(map[string]string)
			}
			flatten("", tree, translations[lang])
		}
	}

	if defaultLang == "" {
		defaultLang = "ru"
	}
	if translations[defaultLang] == nil {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Catalog{translations: translations, defaultLang: defaultLang}, nil
}

// Translator returns a translator for the requested language, falling back to
// the catalog default for unknown languages and missing keys.
func (c *Catalog) Translator(lang string) Translator {
	if c == nil {
		return translator{}
	}

	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" || c.translations[lang] == nil {
		lang = c.defaultLang
	}

	return translator{lang: lang, catalog: c}
}

type translator struct {
	lang    string
	catalog *Catalog
}

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || t.catalog == nil {
		return key
	}

	if value, ok := t.catalog.translations[t.lang][key]; ok {
		return value
	}

	if value, ok := t.catalog.translations[t.catalog.defaultLang][key]; ok {
		return value
	}

	return key
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for key, value := range in {
		if key == "" {
			continue
		}

		nextKey := key
		if prefix != "" {
			nextKey = prefix + "." + key
		}

		switch v := value.(type) {
		case string:
			out[nextKey] = v
		case map[string]any:
			flatten(nextKey, v, out)
		}
	}
}
