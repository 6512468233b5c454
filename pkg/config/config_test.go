package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.DataDirectory == "" {
		t.Error("DataDirectory should not be empty")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}, wantErr: false},
		{name: "invalid SocksPort negative", modify: func(c *Config) { c.SocksPort = -1 }, wantErr: true},
		{name: "invalid SocksPort too large", modify: func(c *Config) { c.SocksPort = 70000 }, wantErr: true},
		{name: "invalid ControlPort", modify: func(c *Config) { c.ControlPort = -1 }, wantErr: true},
		{
			name:    "SocksPort and ControlPort collide",
			modify:  func(c *Config) { c.ControlPort = c.SocksPort },
			wantErr: true,
		},
		{name: "empty DataDirectory", modify: func(c *Config) { c.DataDirectory = "" }, wantErr: true},
		{name: "invalid LogLevel", modify: func(c *Config) { c.LogLevel = "invalid" }, wantErr: true},
		{name: "valid LogLevel debug", modify: func(c *Config) { c.LogLevel = "debug" }, wantErr: false},
		{name: "invalid MaxLogLines", modify: func(c *Config) { c.MaxLogLines = 0 }, wantErr: true},
		{name: "invalid MaxMemoryMB", modify: func(c *Config) { c.MaxMemoryMB = 0 }, wantErr: true},
		{name: "invalid MaxCircuits", modify: func(c *Config) { c.MaxCircuits = 0 }, wantErr: true},
		{name: "invalid ConnectLimiterPerMinute", modify: func(c *Config) { c.ConnectLimiterPerMinute = 0 }, wantErr: true},
		{name: "invalid SessionTokenTTL", modify: func(c *Config) { c.SessionTokenTTL = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	original := DefaultConfig()
	clone := original.Clone()

	if clone.SocksPort != original.SocksPort {
		t.Errorf("SocksPort = %v, want %v", clone.SocksPort, original.SocksPort)
	}

	clone.LogLevel = "debug"
	if original.LogLevel == "debug" {
		t.Error("modifying clone affected original")
	}
}
