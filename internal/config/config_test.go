package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
member_number: "12345"
password: hunter2
account_number: "100200"
merchant_names:
  - COFFEE CO
  - WATER CORP
google_key_file: /secrets/sheets-key.json
google_sheet_id: sheet-abc
google_delegated_authority: bills@example.com
bills_sheet_name: Bills
personal_sheet_names:
  - Alice
  - Bob
cron_schedule: "0 7 * * *"
cron_time_zone: Australia/Sydney
net_banking_address: https://banking.example.com
user_agent: test-agent
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", validYAML)

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if settings.MemberNumber != "12345" {
		t.Errorf("MemberNumber = %q", settings.MemberNumber)
	}
	if len(settings.MerchantNames) != 2 || settings.MerchantNames[1] != "WATER CORP" {
		t.Errorf("MerchantNames = %v", settings.MerchantNames)
	}
	if len(settings.PersonalSheetNames) != 2 {
		t.Errorf("PersonalSheetNames = %v", settings.PersonalSheetNames)
	}
	if settings.CronTimeZone != "Australia/Sydney" {
		t.Errorf("CronTimeZone = %q", settings.CronTimeZone)
	}
	if settings.UserAgent != "test-agent" {
		t.Errorf("UserAgent = %q", settings.UserAgent)
	}
}

func TestLoad_SecretFileOverrides(t *testing.T) {
	secretPath := writeFile(t, "password", "from-secret-file\n")

	yaml := strings.Replace(validYAML, "password: hunter2", "password_file: "+secretPath, 1)
	path := writeFile(t, "config.yaml", yaml)

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if settings.Password != "from-secret-file" {
		t.Errorf("Password = %q, want secret file contents with newline trimmed", settings.Password)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	yaml := strings.Replace(validYAML, `account_number: "100200"`, "", 1)
	path := writeFile(t, "config.yaml", yaml)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for missing account_number")
	}
	if !strings.Contains(err.Error(), "account_number") {
		t.Errorf("Load() error = %v, want mention of account_number", err)
	}
}

func TestLoad_NoMerchants(t *testing.T) {
	yaml := strings.Replace(validYAML, "merchant_names:\n  - COFFEE CO\n  - WATER CORP\n", "", 1)
	path := writeFile(t, "config.yaml", yaml)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for empty merchant list")
	}
}

func TestLoad_DefaultUserAgent(t *testing.T) {
	yaml := strings.Replace(validYAML, "user_agent: test-agent", "", 1)
	path := writeFile(t, "config.yaml", yaml)

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if settings.UserAgent == "" {
		t.Error("UserAgent not defaulted")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}
