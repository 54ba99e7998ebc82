package config

import (
	"strings"
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.Addr != ":8320" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 10*time.Second || cfg.Server.WriteTimeout != 10*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Rules.Source != "file" || cfg.Rules.Path == "" {
		t.Errorf("Rules = %+v", cfg.Rules)
	}
	if cfg.Engine.CacheSize != 1024 {
		t.Errorf("CacheSize = %d", cfg.Engine.CacheSize)
	}
}

func TestValidateDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaulted config must validate: %v", err)
	}
}

func TestValidateRejectsBadSource(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	cfg.Rules.Source = "postgres"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "rules.source") {
		t.Errorf("error %q should name rules.source", err)
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	cfg.Server.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateAPIKeyHashes(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	cfg.Auth.APIKeys = []APIKeyConfig{{Name: "ci", KeyHash: strings.Repeat("ab", 32)}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("hex sha256 hash must validate: %v", err)
	}

	cfg.Auth.APIKeys = []APIKeyConfig{{Name: "ci", KeyHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("argon2id hash must validate: %v", err)
	}

	cfg.Auth.APIKeys = []APIKeyConfig{{Name: "ci", KeyHash: "plaintext-secret"}}
	if err := cfg.Validate(); err == nil {
		t.Error("plaintext key_hash must be rejected")
	}
}
