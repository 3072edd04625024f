package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// Tap economy.
	TapEnergyCap    float64 `yaml:"tap_energy_cap"`
	TapRateMax      int     `yaml:"tap_rate_max"`
	TapRateWindowMs int     `yaml:"tap_rate_window_ms"`
	BatchDebounceMs int     `yaml:"batch_debounce_ms"`

	// Batch delivery retry (REST fallback).
	RetryAttempts    int `yaml:"retry_attempts"`
	RetryBaseDelayMs int `yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `yaml:"retry_max_delay_ms"`

	// Standing periodic tasks.
	EnergyTickMs int `yaml:"energy_tick_ms"`
	BonusTickMs  int `yaml:"bonus_tick_ms"`
	HeartbeatMs  int `yaml:"heartbeat_ms"`
	TaskPollMs   int `yaml:"task_poll_ms"`

	// Push-channel reconnection.
	ReconnectAttempts    int `yaml:"reconnect_attempts"`
	ReconnectBaseDelayMs int `yaml:"reconnect_base_delay_ms"`
	ReconnectMaxDelayMs  int `yaml:"reconnect_max_delay_ms"`
}

// Default mirrors the production deployment values. A tuning file
// overrides individual fields; anything left at zero falls back here.
func Default() Tuning {
	return Tuning{
		TapEnergyCap:    10,
		TapRateMax:      10,
		TapRateWindowMs: 1000,
		BatchDebounceMs: 150,

		RetryAttempts:    3,
		RetryBaseDelayMs: 1000,
		RetryMaxDelayMs:  5000,

		EnergyTickMs: 1000,
		BonusTickMs:  1000,
		HeartbeatMs:  60000,
		TaskPollMs:   3000,

		ReconnectAttempts:    5,
		ReconnectBaseDelayMs: 1000,
		ReconnectMaxDelayMs:  30000,
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t.withDefaults(), nil
}

func (t Tuning) withDefaults() Tuning {
	d := Default()
	if t.TapEnergyCap <= 0 {
		t.TapEnergyCap = d.TapEnergyCap
	}
	if t.TapRateMax <= 0 {
		t.TapRateMax = d.TapRateMax
	}
	if t.TapRateWindowMs <= 0 {
		t.TapRateWindowMs = d.TapRateWindowMs
	}
	if t.BatchDebounceMs <= 0 {
		t.BatchDebounceMs = d.BatchDebounceMs
	}
	if t.RetryAttempts <= 0 {
		t.RetryAttempts = d.RetryAttempts
	}
	if t.RetryBaseDelayMs <= 0 {
		t.RetryBaseDelayMs = d.RetryBaseDelayMs
	}
	if t.RetryMaxDelayMs <= 0 {
		t.RetryMaxDelayMs = d.RetryMaxDelayMs
	}
	if t.EnergyTickMs <= 0 {
		t.EnergyTickMs = d.EnergyTickMs
	}
	if t.BonusTickMs <= 0 {
		t.BonusTickMs = d.BonusTickMs
	}
	if t.HeartbeatMs <= 0 {
		t.HeartbeatMs = d.HeartbeatMs
	}
	if t.TaskPollMs <= 0 {
		t.TaskPollMs = d.TaskPollMs
	}
	if t.ReconnectAttempts <= 0 {
		t.ReconnectAttempts = d.ReconnectAttempts
	}
	if t.ReconnectBaseDelayMs <= 0 {
		t.ReconnectBaseDelayMs = d.ReconnectBaseDelayMs
	}
	if t.ReconnectMaxDelayMs <= 0 {
		t.ReconnectMaxDelayMs = d.ReconnectMaxDelayMs
	}
	return t
}

func (t Tuning) BatchDebounce() time.Duration { return time.Duration(t.BatchDebounceMs) * time.Millisecond }

func (t Tuning) TapRateWindow() time.Duration { return time.Duration(t.TapRateWindowMs) * time.Millisecond }

func (t Tuning) EnergyTick() time.Duration { return time.Duration(t.EnergyTickMs) * time.Millisecond }

func (t Tuning) BonusTick() time.Duration { return time.Duration(t.BonusTickMs) * time.Millisecond }

func (t Tuning) Heartbeat() time.Duration { return time.Duration(t.HeartbeatMs) * time.Millisecond }

func (t Tuning) TaskPoll() time.Duration { return time.Duration(t.TaskPollMs) * time.Millisecond }

// RetryDelay returns the backoff before retry attempt n (1-based):
// base, 2*base, 4*base, ... capped at the configured maximum.
func (t Tuning) RetryDelay(attempt int) time.Duration {
	d := time.Duration(t.RetryBaseDelayMs) * time.Millisecond
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if max := time.Duration(t.RetryMaxDelayMs) * time.Millisecond; d > max {
		d = max
	}
	return d
}

// ReconnectDelay is the same schedule for push-channel reconnects.
func (t Tuning) ReconnectDelay(attempt int) time.Duration {
	d := time.Duration(t.ReconnectBaseDelayMs) * time.Millisecond
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if max := time.Duration(t.ReconnectMaxDelayMs) * time.Millisecond; d > max {
		d = max
	}
	return d
}
