package warden

import (
	"testing"
	"time"
)

func TestEvaluateExpiry(t *testing.T) {
	tests := []struct {
		seconds        int
		wantIndefinite bool
		wantSeconds    int
	}{
		{-3600, true, 0},
		{-10, true, 0},
		{-1, true, 0},
		{0, true, 0},
		{1, false, 1},
		{5, false, 5},
		{300, false, 300},
		{86400, false, 86400},
	}
	for _, tt := range tests {
		p := EvaluateExpiry(tt.seconds)
		if p.Indefinite() != tt.wantIndefinite {
			t.Errorf("EvaluateExpiry(%d).Indefinite() = %v, want %v", tt.seconds, p.Indefinite(), tt.wantIndefinite)
		}
		if p.Seconds() != tt.wantSeconds {
			t.Errorf("EvaluateExpiry(%d).Seconds() = %d, want %d", tt.seconds, p.Seconds(), tt.wantSeconds)
		}
		if p.Unset() {
			t.Errorf("EvaluateExpiry(%d) should never be unset", tt.seconds)
		}
	}
}

func TestEvaluateExpiryIdempotent(t *testing.T) {
	for _, seconds := range []int{-10, 0, 5, 300} {
		first := EvaluateExpiry(seconds)
		second := EvaluateExpiry(seconds)
		if first != second {
			t.Errorf("EvaluateExpiry(%d) not deterministic: %v vs %v", seconds, first, second)
		}
	}
}

func TestExpiryFromEnv(t *testing.T) {
	tests := []struct {
		value          string
		wantIndefinite bool
		wantSeconds    int
		wantErr        bool
	}{
		{"", false, 300, false}, // missing value: documented default
		{"  ", false, 300, false},
		{"300", false, 300, false},
		{"5", false, 5, false},
		{" 42 ", false, 42, false},
		{"0", true, 0, false},
		{"-10", true, 0, false},
		{"abc", false, 0, true}, // present but unparsable: configuration fault
		{"1.5", false, 0, true},
		{"10s", false, 0, true},
	}
	for _, tt := range tests {
		p, err := ExpiryFromEnv(tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ExpiryFromEnv(%q) expected error, got %v", tt.value, p)
			}
			continue
		}
		if err != nil {
			t.Errorf("ExpiryFromEnv(%q) unexpected error: %v", tt.value, err)
			continue
		}
		if p.Indefinite() != tt.wantIndefinite || p.Seconds() != tt.wantSeconds {
			t.Errorf("ExpiryFromEnv(%q) = %v, want indefinite=%v seconds=%d",
				tt.value, p, tt.wantIndefinite, tt.wantSeconds)
		}
	}
}

func TestExpiryEnvValue(t *testing.T) {
	tests := []struct {
		policy ExpiryPolicy
		want   string
	}{
		{HoldFor(120), "120"},
		{HoldFor(1), "1"},
		{HoldIndefinitely(), "0"},
		{HoldFor(-5), "0"},
		{ExpiryPolicy{}, "300"},
	}
	for _, tt := range tests {
		if got := tt.policy.EnvValue(); got != tt.want {
			t.Errorf("%v.EnvValue() = %q, want %q", tt.policy, got, tt.want)
		}
	}
}

func TestExpiryEnvRoundTrip(t *testing.T) {
	for _, policy := range []ExpiryPolicy{HoldFor(5), HoldFor(300), HoldIndefinitely()} {
		parsed, err := ExpiryFromEnv(policy.EnvValue())
		if err != nil {
			t.Fatalf("round trip of %v failed: %v", policy, err)
		}
		if parsed != policy {
			t.Errorf("round trip of %v yielded %v", policy, parsed)
		}
	}
}

func TestExpiryOrDefault(t *testing.T) {
	if got := (ExpiryPolicy{}).OrDefault(); got != HoldFor(DefaultExpireSeconds) {
		t.Errorf("zero value OrDefault() = %v, want 300s bound", got)
	}
	if got := HoldIndefinitely().OrDefault(); !got.Indefinite() {
		t.Errorf("indefinite OrDefault() = %v, want indefinite", got)
	}
	if got := HoldFor(5).OrDefault(); got.Seconds() != 5 {
		t.Errorf("bounded OrDefault() = %v, want 5s", got)
	}
}

func TestExpiryDuration(t *testing.T) {
	if got := HoldFor(5).Duration(); got != 5*time.Second {
		t.Errorf("HoldFor(5).Duration() = %v, want 5s", got)
	}
	if got := HoldIndefinitely().Duration(); got != 0 {
		t.Errorf("HoldIndefinitely().Duration() = %v, want 0", got)
	}
}

func TestExpiryString(t *testing.T) {
	tests := []struct {
		policy ExpiryPolicy
		want   string
	}{
		{HoldFor(60), "expire after 60s"},
		{HoldIndefinitely(), "never expire"},
		{ExpiryPolicy{}, "unset"},
	}
	for _, tt := range tests {
		if got := tt.policy.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
