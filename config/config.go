// Package config supplies the carrier configuration snapshot consumed by the
// call tracker. Every field is optional with a documented default; a missing
// or unreadable configuration source is treated as "no override", never as a
// fatal condition. Reloads replace the whole snapshot at once.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opd-ai/imscall/cause"
)

// RemapRule is the YAML form of one carrier reason-code substitution.
// A from_code of -1 is the wildcard matching any code by message alone.
type RemapRule struct {
	FromCode int    `yaml:"from_code"`
	Message  string `yaml:"message"`
	ToCode   int    `yaml:"to_code"`
}

// Carrier is one carrier configuration snapshot.
type Carrier struct {
	// AllowHoldingVideoCalls permits placing a video call on hold.
	// Default true.
	AllowHoldingVideoCalls bool `yaml:"allow_holding_video_calls"`

	// SupportsDowngradeToAudio indicates the network accepts a
	// downgrade-to-audio request on an active video call. Default false.
	SupportsDowngradeToAudio bool `yaml:"supports_downgrade_to_audio"`

	// SupportsVideoPause indicates the network supports video pause
	// signalling. Default false.
	SupportsVideoPause bool `yaml:"supports_video_pause"`

	// DropVideoCallWhenAnsweringAudioCall makes answering an audio-only
	// waiting call disconnect an unholdable video-over-WIFI call instead of
	// holding it. Default false.
	DropVideoCallWhenAnsweringAudioCall bool `yaml:"drop_video_call_when_answering_audio_call"`

	// VoWiFiEnabled indicates the subscription allows calls over WIFI.
	// Default true.
	VoWiFiEnabled bool `yaml:"vowifi_enabled"`

	// WifiHandoverCheckDelay is how long after a handover toward WIFI starts
	// before the tracker verifies it completed. Default 20s.
	WifiHandoverCheckDelay time.Duration `yaml:"wifi_handover_check_delay"`

	// ReasonRemap is the carrier reason-code remap table. Default empty.
	ReasonRemap []RemapRule `yaml:"reason_remap"`
}

// Default returns the built-in carrier defaults used when no configuration
// service is available.
func Default() Carrier {
	return Carrier{
		AllowHoldingVideoCalls: true,
		VoWiFiEnabled:          true,
		WifiHandoverCheckDelay: 20 * time.Second,
	}
}

// Load reads a carrier snapshot from a YAML file, applying defaults for
// absent fields.
func Load(path string) (Carrier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("reading carrier config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a carrier snapshot from YAML bytes, applying defaults for
// absent fields.
func Parse(data []byte) (Carrier, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing carrier config: %w", err)
	}
	if cfg.WifiHandoverCheckDelay <= 0 {
		cfg.WifiHandoverCheckDelay = Default().WifiHandoverCheckDelay
	}
	return cfg, nil
}

// CauseRules converts the YAML remap rules into the translator's form.
func (c Carrier) CauseRules() []cause.RemapRule {
	rules := make([]cause.RemapRule, 0, len(c.ReasonRemap))
	for _, r := range c.ReasonRemap {
		rules = append(rules, cause.RemapRule{
			From:    cause.ReasonCode(r.FromCode),
			Message: r.Message,
			To:      cause.ReasonCode(r.ToCode),
		})
	}
	return rules
}

// Provider supplies carrier snapshots on demand. Implementations emit a
// configuration-changed signal by invoking the registered function; the
// tracker responds by reloading the whole snapshot.
type Provider interface {
	// Snapshot returns the current carrier configuration.
	Snapshot() Carrier

	// OnChange registers the change signal. Passing nil unregisters it.
	OnChange(fn func())
}

// StaticProvider is a Provider holding a fixed snapshot, used when no
// carrier configuration service exists.
type StaticProvider struct {
	carrier Carrier
}

// NewStaticProvider creates a provider always returning the given snapshot.
func NewStaticProvider(c Carrier) *StaticProvider {
	return &StaticProvider{carrier: c}
}

// Snapshot returns the fixed snapshot.
func (p *StaticProvider) Snapshot() Carrier {
	return p.carrier
}

// OnChange is a no-op: a static provider never changes.
func (p *StaticProvider) OnChange(func()) {}
