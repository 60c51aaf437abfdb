package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestLLMConfig_RemoteNeedsEndpointAndModel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LLM.Service = "openai"
	if err := cfg.Validate(); err == nil {
		t.Fatal("remote service without base_url and model should fail")
	}
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("remote service with endpoint should pass: %v", err)
	}
}

func TestBreakerConfig_Generator(t *testing.T) {
	cfg := NewDefaultConfig().LLM.Breaker
	cfg.MinRequests = 7
	got := cfg.Generator("openai")
	if got.Name != "openai" || got.MinRequests != 7 || got.FailureThreshold != 0.6 {
		t.Errorf("breaker config = %+v", got)
	}
}

func TestLimitsConfig_BurstRequiredWhenLimited(t *testing.T) {
	cfg := LimitsConfig{GeneratePerMinute: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatal("limit without burst should fail")
	}
	cfg = LimitsConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unlimited should pass: %v", err)
	}
}

func TestSessionConfig_RejectsZeroDurations(t *testing.T) {
	cfg := NewDefaultConfig().Session
	cfg.ShotTick = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero shot tick should fail")
	}
}
