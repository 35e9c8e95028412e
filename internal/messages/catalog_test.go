package messages

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// warnLogger records warnings and drops everything else.
type warnLogger struct {
	warnings []string
}

func (l *warnLogger) Debug(string, ...interface{}) {}
func (l *warnLogger) Info(string, ...interface{})  {}
func (l *warnLogger) Warn(format string, v ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, v...))
}
func (l *warnLogger) Error(string, ...interface{})                     {}
func (l *warnLogger) WithField(string, interface{}) runtime.Logger     { return l }
func (l *warnLogger) WithFields(map[string]interface{}) runtime.Logger { return l }
func (l *warnLogger) Fields() map[string]interface{}                   { return nil }

func TestGetMessageSubstitutesPrefixAndPlaceholders(t *testing.T) {
	c := New("en", map[string]string{
		"prefix":                  "[DOA] ",
		"event-player-eliminated": "%prefix%%player% is out (%player%)",
	})

	assert.Equal(t, "[DOA] Steve is out (Steve)", c.GetMessage("event-player-eliminated", "player", "Steve"))
	assert.Equal(t, "Message not found: nope", c.GetMessage("nope"))
	assert.Equal(t, "%prefix%%player% is out (%player%)", c.GetRaw("event-player-eliminated"))
	assert.Equal(t, "", c.GetRaw("nope"))
}

func TestGetMessageIgnoresDanglingPlaceholder(t *testing.T) {
	c := New("en", map[string]string{"k": "%a%-%b%"})
	assert.Equal(t, "1-%b%", c.GetMessage("k", "a", "1", "b"))
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "es.json"), []byte(`{"prefix": "> ", "hello": "%prefix%hola"}`), 0o644))

	c, err := Load(&warnLogger{}, dir, "ES")
	require.NoError(t, err)
	assert.Equal(t, "es", c.Language())
	assert.Equal(t, "> hola", c.GetMessage("hello"))
}

func TestLoadFallsBackToEnglish(t *testing.T) {
	logger := &warnLogger{}
	c, err := Load(logger, t.TempDir(), "fr")
	require.NoError(t, err)

	assert.Equal(t, DefaultLanguage, c.Language())
	assert.Len(t, logger.warnings, 1)
	assert.Contains(t, c.GetMessage("event-start-success"), "The match has started.")
}

func TestBuiltInDefaultsCoverEveryLanguage(t *testing.T) {
	en, err := Load(&warnLogger{}, t.TempDir(), "en")
	require.NoError(t, err)

	for _, lang := range SupportedLanguages {
		c, err := Load(&warnLogger{}, t.TempDir(), lang)
		require.NoError(t, err)
		for key := range en.entries {
			_, ok := c.entries[key]
			assert.True(t, ok, "language %s is missing %s", lang, key)
		}
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.json"), []byte(`{"prefix": 3}`), 0o644))

	_, err := Load(&warnLogger{}, dir, "en")
	assert.Error(t, err)
}
