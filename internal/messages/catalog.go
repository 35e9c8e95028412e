// Package messages resolves localized player-facing text.
package messages

import (
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"deadoralive/internal/ports"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

const (
	// DefaultLanguage is used when the configured language has no file.
	DefaultLanguage = "en"
	prefixKey       = "prefix"
)

// SupportedLanguages ship with built-in defaults.
var SupportedLanguages = []string{"en", "es"}

//go:embed defaults/*.json
var defaults embed.FS

// Catalog is a MessageCatalog for one language.
type Catalog struct {
	language string
	entries  map[string]string
}

var _ ports.MessageCatalog = (*Catalog)(nil)

// New builds a catalog from entries.
func New(language string, entries map[string]string) *Catalog {
	if entries == nil {
		entries = map[string]string{}
	}
	return &Catalog{language: language, entries: entries}
}

// Load reads <dir>/<language>.json. An unknown language falls back to en with a warning.
// Files missing on disk fall back to the built-in defaults.
func Load(logger runtime.Logger, dir, language string) (*Catalog, error) {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		lang = DefaultLanguage
	}

	entries, found, err := readLanguage(dir, lang)
	if err != nil {
		return nil, err
	}
	if !found && lang != DefaultLanguage {
		logger.Warn("Messages file for language '%s' not found. Falling back to '%s'.", lang, DefaultLanguage)
		lang = DefaultLanguage
		entries, found, err = readLanguage(dir, lang)
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, eris.Errorf("no messages for language %s", lang)
	}
	return New(lang, entries), nil
}

func readLanguage(dir, lang string) (map[string]string, bool, error) {
	name := lang + ".json"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		data, err = defaults.ReadFile("defaults/" + name)
		if err != nil {
			return nil, false, nil
		}
	} else if err != nil {
		return nil, false, eris.Wrapf(err, "failed to read messages %s", name)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, eris.Wrapf(err, "failed to unmarshal messages %s", name)
	}
	return entries, true, nil
}

// Language returns the language that was loaded.
func (c *Catalog) Language() string {
	return c.language
}

func (c *Catalog) GetMessage(key string, placeholders ...string) string {
	msg, ok := c.entries[key]
	if !ok {
		return "Message not found: " + key
	}
	msg = strings.ReplaceAll(msg, "%prefix%", c.entries[prefixKey])
	for i := 0; i+1 < len(placeholders); i += 2 {
		msg = strings.ReplaceAll(msg, "%"+placeholders[i]+"%", placeholders[i+1])
	}
	return msg
}

func (c *Catalog) GetRaw(key string) string {
	return c.entries[key]
}
