package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	// Isolated viper instance, no user or system config involved
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if cfg.Comm.Common.ReadTermination != "\n" {
		t.Errorf("expected default read termination \\n, got %q", cfg.Comm.Common.ReadTermination)
	}
	if cfg.Comm.Common.TimeoutMS != 2000 {
		t.Errorf("expected default timeout 2000, got %d", cfg.Comm.Common.TimeoutMS)
	}
	if cfg.Comm.ASRL.BaudRate != 9600 {
		t.Errorf("expected default baud rate 9600, got %d", cfg.Comm.ASRL.BaudRate)
	}
	if cfg.GetMonitorPort() != DefaultMonitorPort {
		t.Errorf("expected default monitor port %d, got %d", DefaultMonitorPort, cfg.GetMonitorPort())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lantz.toml")
	content := `
[comm.asrl]
baud_rate = 115200
read_termination = "\r\n"

[aliases.fungen]
resource = "TCPIP::192.168.0.1::INSTR"
driver = "fungen"

[monitor]
port = 9000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.Comm.ASRL.BaudRate != 115200 {
		t.Errorf("expected baud rate 115200, got %d", cfg.Comm.ASRL.BaudRate)
	}
	if cfg.Comm.ASRL.ReadTermination != "\r\n" {
		t.Errorf("expected read termination \\r\\n, got %q", cfg.Comm.ASRL.ReadTermination)
	}

	alias, ok := cfg.GetAlias("fungen")
	if !ok {
		t.Fatal("expected fungen alias")
	}
	if alias.Resource != "TCPIP::192.168.0.1::INSTR" {
		t.Errorf("unexpected alias resource %q", alias.Resource)
	}

	if cfg.GetMonitorPort() != 9000 {
		t.Errorf("expected monitor port 9000, got %d", cfg.GetMonitorPort())
	}
}

func TestCommSettingsMerge(t *testing.T) {
	common := CommSettings{ReadTermination: "\n", WriteTermination: "\n", TimeoutMS: 2000}
	asrl := CommSettings{ReadTermination: "\r\n", BaudRate: 9600}

	merged := asrl.Merge(common)
	if merged.ReadTermination != "\r\n" {
		t.Errorf("interface layer should win, got %q", merged.ReadTermination)
	}
	if merged.WriteTermination != "\n" {
		t.Errorf("common layer should fill gaps, got %q", merged.WriteTermination)
	}
	if merged.TimeoutMS != 2000 {
		t.Errorf("common layer should fill timeout, got %d", merged.TimeoutMS)
	}
	if merged.BaudRate != 9600 {
		t.Errorf("baud rate lost in merge, got %d", merged.BaudRate)
	}
}

func TestForInterface(t *testing.T) {
	c := CommConfig{
		Common: CommSettings{WriteTermination: "\n", TimeoutMS: 2000},
		ASRL:   CommSettings{ReadTermination: "\r", BaudRate: 9600},
	}

	s := c.ForInterface("ASRL")
	if s.ReadTermination != "\r" || s.WriteTermination != "\n" || s.BaudRate != 9600 {
		t.Errorf("unexpected merged settings %+v", s)
	}

	// Unknown interface types fall back to the common layer.
	s = c.ForInterface("PXI")
	if s.TimeoutMS != 2000 || s.ReadTermination != "" {
		t.Errorf("unexpected fallback settings %+v", s)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			config:  Config{},
			wantErr: false,
		},
		{
			name:    "negative monitor port is invalid",
			config:  Config{Monitor: MonitorConfig{Port: -1}},
			wantErr: true,
		},
		{
			name:    "port above 65535 is invalid",
			config:  Config{Monitor: MonitorConfig{Port: 70000}},
			wantErr: true,
		},
		{
			name:    "negative timeout is invalid",
			config:  Config{Comm: CommConfig{ASRL: CommSettings{TimeoutMS: -1}}},
			wantErr: true,
		},
		{
			name: "alias without resource is invalid",
			config: Config{
				Aliases: map[string]Alias{"fungen": {Driver: "fungen"}},
			},
			wantErr: true,
		},
		{
			name: "complete alias is valid",
			config: Config{
				Aliases: map[string]Alias{
					"fungen": {Resource: "ASRL2::INSTR", Driver: "fungen"},
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileValueOutranksEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LANTZ_COMM_COMMON_TIMEOUT_MS", "999")
	Reset()
	t.Cleanup(Reset)

	dir := filepath.Join(os.Getenv("HOME"), ".lantz")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	content := "[comm.common]\ntimeout_ms = 1234\n"
	if err := os.WriteFile(filepath.Join(dir, "lantz.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	// A value set by any config file wins over LANTZ_* variables; the
	// environment only fills keys no file sets.
	if cfg.Comm.Common.TimeoutMS != 1234 {
		t.Errorf("TimeoutMS = %d, want the file value 1234", cfg.Comm.Common.TimeoutMS)
	}
}

func TestEnvFillsUnsetKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LANTZ_COMM_ASRL_BAUD_RATE", "115200")
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Comm.ASRL.BaudRate != 115200 {
		t.Errorf("BaudRate = %d, want 115200 from the environment", cfg.Comm.ASRL.BaudRate)
	}
}

func TestPersistAliases(t *testing.T) {
	// Point the home directory at a sandbox so the test does not touch
	// the real ~/.lantz.
	t.Setenv("HOME", t.TempDir())
	Reset()
	t.Cleanup(Reset)

	err := SetAlias("fungen", Alias{Resource: "TCPIP::192.168.0.1::INSTR", Driver: "fungen"})
	if err != nil {
		t.Fatalf("SetAlias() failed: %v", err)
	}

	aliases, _, err := loadAliasesFile()
	if err != nil {
		t.Fatalf("loadAliasesFile() failed: %v", err)
	}
	if aliases["fungen"].Resource != "TCPIP::192.168.0.1::INSTR" {
		t.Errorf("unexpected persisted alias %+v", aliases["fungen"])
	}

	// Saving again rotates a backup of the previous file.
	if err := SetAlias("scope", Alias{Resource: "ASRL2::INSTR"}); err != nil {
		t.Fatalf("SetAlias() failed: %v", err)
	}
	if _, err := os.Stat(AliasesPath() + ".back1"); err != nil {
		t.Errorf("expected .back1 backup: %v", err)
	}

	if err := RemoveAlias("fungen"); err != nil {
		t.Fatalf("RemoveAlias() failed: %v", err)
	}
	if err := RemoveAlias("fungen"); err == nil {
		t.Error("removing a missing alias should fail")
	}
}
