package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Editor holds the settings shared by the API server and the terminal editor.
type Editor struct {
	CompletionUpstreamURL string
	CompletionTimeout     time.Duration
	SuggestionDebounce    time.Duration
	SaveDebounce          time.Duration
}

type Config struct {
	Editor

	ServiceAddr    string
	DatabaseURL    string
	JWTSecret      string
	AllowedOrigins []string
	BlobDir        string
	MaxUploadBytes int64
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig(envFiles ...string) (*Config, error) {
	loadEnv(envFiles)
	return FromLookup(os.LookupEnv)
}

// LoadEditorConfig is LoadConfig for tools that only edit and suggest.
func LoadEditorConfig(envFiles ...string) (*Editor, error) {
	loadEnv(envFiles)
	return EditorFromLookup(os.LookupEnv)
}

func loadEnv(envFiles []string) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

func getter(lookup func(string) (string, bool)) func(key, def string) string {
	return func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
}

// EditorFromLookup builds the editor settings from lookup, applying defaults for unset variables.
func EditorFromLookup(lookup func(string) (string, bool)) (*Editor, error) {
	get := getter(lookup)
	ed := &Editor{CompletionUpstreamURL: get("COMPLETION_UPSTREAM_URL", "")}

	var err error
	if ed.CompletionTimeout, err = duration(get("COMPLETION_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("COMPLETION_TIMEOUT: %w", err)
	}
	if ed.SuggestionDebounce, err = duration(get("SUGGESTION_DEBOUNCE", "300ms")); err != nil {
		return nil, fmt.Errorf("SUGGESTION_DEBOUNCE: %w", err)
	}
	if ed.SaveDebounce, err = duration(get("SAVE_DEBOUNCE", "1500ms")); err != nil {
		return nil, fmt.Errorf("SAVE_DEBOUNCE: %w", err)
	}
	return ed, nil
}

// FromLookup builds a Config from lookup, applying defaults for unset variables.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := getter(lookup)

	cfg := &Config{
		ServiceAddr: get("SERVICE_ADDR", ":8080"),
		DatabaseURL: get("DATABASE_URL", ""),
		JWTSecret:   get("JWT_SECRET", ""),
		BlobDir:     get("BLOB_DIR", "./data/blobs"),
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable not set")
	}

	for _, origin := range strings.Split(get("ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	ed, err := EditorFromLookup(lookup)
	if err != nil {
		return nil, err
	}
	cfg.Editor = *ed

	cfg.MaxUploadBytes, err = strconv.ParseInt(get("MAX_UPLOAD_BYTES", "10485760"), 10, 64)
	if err != nil || cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES: invalid value %q", get("MAX_UPLOAD_BYTES", ""))
	}
	return cfg, nil
}

func duration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}
