package localization_test

import (
	"chatterbox/backend/internal/localization"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_BundledCatalogs(t *testing.T) {
	l, err := localization.Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "es"}, l.Languages())
	assert.Equal(t, "alice joined the chat", l.Format("en", localization.KeyJoined, "alice"))
	assert.Equal(t, "alice se ha unido al chat", l.Format("es", localization.KeyJoined, "alice"))
	assert.Equal(t, "bob left the chat", l.Format("en", localization.KeyLeft, "bob"))
}

func TestGetString_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"i18n/en.json":    {Data: []byte(`{"greeting":"hello","only_en":"english"}`)},
		"i18n/uk.json":    {Data: []byte(`{"greeting":"привіт"}`)},
		"i18n/README.txt": {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizer(fsys, "i18n")
	require.NoError(t, err)

	assert.Equal(t, "привіт", l.GetString("uk", "greeting"))
	assert.Equal(t, "english", l.GetString("uk", "only_en"), "missing key falls back to English")
	assert.Equal(t, "hello", l.GetString("fr", "greeting"), "missing language falls back to English")
	assert.Equal(t, "missing", l.GetString("en", "missing"), "unknown key is returned as is")
}

func TestNewLocalizer_Errors(t *testing.T) {
	_, err := localization.NewLocalizer(fstest.MapFS{}, "nowhere")
	assert.Error(t, err)

	_, err = localization.NewLocalizer(fstest.MapFS{
		"i18n/en.json": {Data: []byte(`{not json`)},
	}, "i18n")
	assert.Error(t, err)
}
