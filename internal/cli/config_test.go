package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name       string
		config     string
		wantErr    bool
		wantServer string
	}{
		{
			name: "valid config",
			config: `version: "1"
server: "https://sync.flowershow.app/"
current_site: "0190a4c8-5a0e-7d3a-9c1b-3f1e2d4c5b6a"`,
			wantServer: "https://sync.flowershow.app",
		},
		{
			name: "server without scheme",
			config: `version: "1"
server: "localhost:8197"`,
			wantServer: "http://localhost:8197",
		},
		{
			name:    "missing server",
			config:  `version: "1"`,
			wantErr: true,
		},
		{
			name:    "not yaml",
			config:  "server: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := filepath.Join(tmpDir, "config.yaml")
			if err := os.WriteFile(configFile, []byte(tt.config), 0o644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}

			err := LoadConfig(configFile)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := GetConfig().Server; got != tt.wantServer {
				t.Errorf("Server = %q, want %q", got, tt.wantServer)
			}
		})
	}
}

func TestWriteConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c := &Config{Version: "1", Server: "http://localhost:8197"}
	c.RememberSite("site-1", "owner-token")
	if err := c.WriteConfig(configFile); err != nil {
		t.Fatalf("WriteConfig() error = %v", err)
	}

	info, err := os.Stat(configFile)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	if err := LoadConfig(configFile); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	got := GetConfig()
	if got.CurrentSite != "site-1" || got.OwnerTokens["site-1"] != "owner-token" {
		t.Errorf("unexpected config after round trip: %+v", got)
	}

	if err := c.WriteConfig(""); err == nil {
		t.Error("WriteConfig(\"\") should fail")
	}
}

func TestMorphServer(t *testing.T) {
	tests := map[string]string{
		"":                       "",
		"localhost:8197":         "http://localhost:8197",
		"https://example.com///": "https://example.com",
		"http://example.com:80":  "http://example.com:80",
	}
	for in, want := range tests {
		if got := MorphServer(in); got != want {
			t.Errorf("MorphServer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSiteID(t *testing.T) {
	c := &Config{CurrentSite: "current"}
	if id, _ := c.SiteID("explicit"); id != "explicit" {
		t.Errorf("SiteID(explicit) = %q", id)
	}
	if id, _ := c.SiteID(""); id != "current" {
		t.Errorf("SiteID(\"\") = %q", id)
	}
	if _, err := (&Config{}).SiteID(""); err == nil {
		t.Error("SiteID without a current site should fail")
	}
}
