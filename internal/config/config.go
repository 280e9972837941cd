// Package config loads the worker's settings from a YAML file. Credentials
// may be supplied inline or through companion *_file keys pointing at
// secret files (the deployment mounts Docker secrets that way); the rest of
// the codebase only ever sees the fully-resolved Settings value.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultUserAgent is sent when the config does not pin one.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Settings is the resolved configuration surface consumed by the run.
type Settings struct {
	MemberNumber  string   `yaml:"member_number"`
	Password      string   `yaml:"password"`
	AccountNumber string   `yaml:"account_number"`
	MerchantNames []string `yaml:"merchant_names"`

	GoogleKeyFile            string   `yaml:"google_key_file"`
	GoogleSheetID            string   `yaml:"google_sheet_id"`
	GoogleDelegatedAuthority string   `yaml:"google_delegated_authority"`
	BillsSheetName           string   `yaml:"bills_sheet_name"`
	PersonalSheetNames       []string `yaml:"personal_sheet_names"`

	CronSchedule string `yaml:"cron_schedule"`
	CronTimeZone string `yaml:"cron_time_zone"`

	NetBankingAddress string `yaml:"net_banking_address"`
	UserAgent         string `yaml:"user_agent"`
}

// fileSettings adds the secret-file companion keys accepted in the YAML but
// not exposed past loading.
type fileSettings struct {
	Settings         `yaml:",inline"`
	MemberNumberFile string `yaml:"member_number_file"`
	PasswordFile     string `yaml:"password_file"`
}

// Load reads, resolves and validates the settings at path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileSettings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("parse config: %w", err)
	}

	settings := raw.Settings

	if raw.MemberNumberFile != "" {
		if settings.MemberNumber, err = readSecret(raw.MemberNumberFile); err != nil {
			return Settings{}, fmt.Errorf("member number secret: %w", err)
		}
	}
	if raw.PasswordFile != "" {
		if settings.Password, err = readSecret(raw.PasswordFile); err != nil {
			return Settings{}, fmt.Errorf("password secret: %w", err)
		}
	}

	if settings.UserAgent == "" {
		settings.UserAgent = defaultUserAgent
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate checks the fields without which a run cannot do useful work.
func (s Settings) Validate() error {
	var missing []string

	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	require("member_number", s.MemberNumber)
	require("password", s.Password)
	require("account_number", s.AccountNumber)
	require("google_key_file", s.GoogleKeyFile)
	require("google_sheet_id", s.GoogleSheetID)
	require("bills_sheet_name", s.BillsSheetName)
	require("net_banking_address", s.NetBankingAddress)

	if len(s.MerchantNames) == 0 {
		missing = append(missing, "merchant_names")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// readSecret reads a mounted secret file, trimming the trailing newline most
// secret stores append.
func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
