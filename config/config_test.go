package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/imscall/cause"
)

func TestDefaultCarrier(t *testing.T) {
	c := Default()
	if !c.AllowHoldingVideoCalls {
		t.Error("Expected holding video calls allowed by default")
	}
	if !c.VoWiFiEnabled {
		t.Error("Expected VoWiFi enabled by default")
	}
	if c.WifiHandoverCheckDelay != 20*time.Second {
		t.Errorf("Expected 20s handover check delay, got %v", c.WifiHandoverCheckDelay)
	}
	if c.SupportsDowngradeToAudio || c.SupportsVideoPause || c.DropVideoCallWhenAnsweringAudioCall {
		t.Error("Expected video policy flags off by default")
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
allow_holding_video_calls: false
supports_downgrade_to_audio: true
wifi_handover_check_delay: 5s
reason_remap:
  - from_code: 353
    to_code: 338
  - from_code: -1
    message: "low battery"
    to_code: 1300
`)
	c, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.AllowHoldingVideoCalls {
		t.Error("Expected holding video calls disabled")
	}
	if !c.SupportsDowngradeToAudio {
		t.Error("Expected downgrade supported")
	}
	if c.WifiHandoverCheckDelay != 5*time.Second {
		t.Errorf("Expected 5s delay, got %v", c.WifiHandoverCheckDelay)
	}
	if len(c.ReasonRemap) != 2 {
		t.Fatalf("Expected 2 remap rules, got %d", len(c.ReasonRemap))
	}

	rules := c.CauseRules()
	if rules[0].From != cause.ReasonCode(353) || rules[0].To != cause.ReasonCode(338) {
		t.Errorf("Unexpected first rule: %+v", rules[0])
	}
	if rules[1].From != cause.CodeAnyMessage || rules[1].Message != "low battery" {
		t.Errorf("Unexpected wildcard rule: %+v", rules[1])
	}
}

func TestParseKeepsUnsetDefaults(t *testing.T) {
	c, err := Parse([]byte(`supports_video_pause: true`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !c.SupportsVideoPause {
		t.Error("Expected video pause enabled")
	}
	// Absent fields keep their defaults.
	if !c.VoWiFiEnabled {
		t.Error("Expected VoWiFi default preserved")
	}
	if c.WifiHandoverCheckDelay != Default().WifiHandoverCheckDelay {
		t.Errorf("Expected default delay preserved, got %v", c.WifiHandoverCheckDelay)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("reason_remap: [not a rule")); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carrier.yaml")
	if err := os.WriteFile(path, []byte("vowifi_enabled: false\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.VoWiFiEnabled {
		t.Error("Expected VoWiFi disabled")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("Expected error for missing file")
	}
	if !c.VoWiFiEnabled {
		t.Error("Expected defaults returned alongside the error")
	}
}

func TestStaticProvider(t *testing.T) {
	want := Default()
	want.SupportsDowngradeToAudio = true

	p := NewStaticProvider(want)
	if got := p.Snapshot(); got.SupportsDowngradeToAudio != true {
		t.Errorf("Unexpected snapshot: %+v", got)
	}
	// OnChange on a static provider never fires and must not panic.
	p.OnChange(func() { t.Error("Static provider must not signal changes") })
}
