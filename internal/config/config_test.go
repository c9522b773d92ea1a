package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{"JWT_SECRET": "s3cret"}))
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.ServiceAddr)
	require.Empty(t, cfg.DatabaseURL)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	require.Equal(t, "./data/blobs", cfg.BlobDir)
	require.Equal(t, 10*time.Second, cfg.CompletionTimeout)
	require.Equal(t, 300*time.Millisecond, cfg.SuggestionDebounce)
	require.Equal(t, 1500*time.Millisecond, cfg.SaveDebounce)
	require.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"JWT_SECRET":          "s3cret",
		"ALLOWED_ORIGINS":     "https://a.example, https://b.example,",
		"SUGGESTION_DEBOUNCE": "150ms",
		"MAX_UPLOAD_BYTES":    "1024",
	}))
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, 150*time.Millisecond, cfg.SuggestionDebounce)
	require.Equal(t, int64(1024), cfg.MaxUploadBytes)
}

func TestFromLookup_Invalid(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{}))
	require.ErrorContains(t, err, "JWT_SECRET")

	_, err = FromLookup(lookupFrom(map[string]string{"JWT_SECRET": "x", "SAVE_DEBOUNCE": "soon"}))
	require.ErrorContains(t, err, "SAVE_DEBOUNCE")

	_, err = FromLookup(lookupFrom(map[string]string{"JWT_SECRET": "x", "COMPLETION_TIMEOUT": "-1s"}))
	require.ErrorContains(t, err, "COMPLETION_TIMEOUT")

	_, err = FromLookup(lookupFrom(map[string]string{"JWT_SECRET": "x", "MAX_UPLOAD_BYTES": "lots"}))
	require.ErrorContains(t, err, "MAX_UPLOAD_BYTES")
}

func TestEditorFromLookup_NeedsNoSecret(t *testing.T) {
	ed, err := EditorFromLookup(lookupFrom(map[string]string{
		"COMPLETION_UPSTREAM_URL": "http://localhost:9000/complete",
		"SUGGESTION_DEBOUNCE":     "120ms",
	}))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000/complete", ed.CompletionUpstreamURL)
	require.Equal(t, 120*time.Millisecond, ed.SuggestionDebounce)
	require.Equal(t, 1500*time.Millisecond, ed.SaveDebounce)

	_, err = EditorFromLookup(lookupFrom(map[string]string{"SUGGESTION_DEBOUNCE": "0s"}))
	require.ErrorContains(t, err, "SUGGESTION_DEBOUNCE")
}
