package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Connection types for the model runtime. The connection type decides
// whether tool-calling affordances are exposed downstream.
const (
	ConnectionOllama = "ollama"
	ConnectionOpenAI = "openai-compat"
)

// Settings holds the dynamic application settings stored in the settings
// table, including the license snapshot consulted by the entitlement gate.
type Settings struct {
	ConnectionType string `json:"connection_type"`
	Model          string `json:"model"`
	SystemTemplate string `json:"system_template"`
	LicenseKey     string `json:"license_key"`
	LicenseValid   bool   `json:"license_valid"`
}

// SupportsTools reports whether the active connection type exposes
// tool-calling to the model.
func (s *Settings) SupportsTools() bool {
	return s.ConnectionType == ConnectionOpenAI
}

// Entitled reports whether a valid paid entitlement is present. This is a
// synchronous read of already-fetched license state; validity itself is
// established elsewhere.
func (s *Settings) Entitled() bool {
	return s.LicenseKey != "" && s.LicenseValid
}

type SettingsService struct {
	db *sql.DB
}

func NewSettingsService(db *sql.DB) *SettingsService {
	return &SettingsService{db: db}
}

// InitAndGet loads settings, seeding defaults for any keys missing on first
// run.
func (s *SettingsService) InitAndGet(ctx context.Context, defaultModel, defaultTemplate string) (*Settings, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if settings.ConnectionType == "" {
		settings.ConnectionType = ConnectionOllama
	}
	if settings.Model == "" {
		settings.Model = defaultModel
	}
	if settings.SystemTemplate == "" {
		settings.SystemTemplate = defaultTemplate
	}

	if err := s.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save initial settings: %w", err)
	}
	slog.Info("Loaded application settings", "connection_type", settings.ConnectionType, "model", settings.Model)
	return settings, nil
}

// Get reads the whole settings table into a Settings value.
func (s *SettingsService) Get(ctx context.Context) (*Settings, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("could not read settings: %w", err)
	}
	defer rows.Close()

	settings := &Settings{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		switch key {
		case "connection_type":
			settings.ConnectionType = value
		case "model":
			settings.Model = value
		case "system_template":
			settings.SystemTemplate = value
		case "license_key":
			settings.LicenseKey = value
		case "license_valid":
			settings.LicenseValid = value == "true"
		}
	}
	return settings, rows.Err()
}

// Save upserts every settings key.
func (s *SettingsService) Save(ctx context.Context, settings *Settings) error {
	pairs := map[string]string{
		"connection_type": settings.ConnectionType,
		"model":           settings.Model,
		"system_template": settings.SystemTemplate,
		"license_key":     settings.LicenseKey,
		"license_valid":   fmt.Sprintf("%t", settings.LicenseValid),
	}
	for key, value := range pairs {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value,
		)
		if err != nil {
			return fmt.Errorf("could not save setting %s: %w", key, err)
		}
	}
	return nil
}
