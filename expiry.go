package warden

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultExpireSeconds is the sandbox lifetime applied when no expiry
// configuration is provided.
const DefaultExpireSeconds = 300

// EnvExpireSeconds is the environment variable carrying the expiry
// duration from the controller into the sandbox supervisor.
const EnvExpireSeconds = "EXPIRE_SECONDS"

type expiryMode int

const (
	expiryUnset expiryMode = iota
	expiryBounded
	expiryIndefinite
)

// ExpiryPolicy is the evaluated lifetime decision for one sandbox: hold it
// open for a fixed number of seconds, or hold it open until externally
// terminated. Policies are immutable values; the zero value means "unset"
// and components that receive it substitute the 300-second default.
type ExpiryPolicy struct {
	mode    expiryMode
	seconds int
}

// EvaluateExpiry maps a configured duration to a policy: zero or negative
// durations hold the sandbox open indefinitely, positive durations hold it
// open for exactly that many seconds. Pure and deterministic; evaluating
// the same duration twice yields the same decision.
func EvaluateExpiry(durationSeconds int) ExpiryPolicy {
	if durationSeconds <= 0 {
		return HoldIndefinitely()
	}
	return ExpiryPolicy{mode: expiryBounded, seconds: durationSeconds}
}

// HoldFor returns a bounded policy expiring after the given number of
// seconds. Non-positive values degrade to HoldIndefinitely, matching
// EvaluateExpiry.
func HoldFor(seconds int) ExpiryPolicy {
	return EvaluateExpiry(seconds)
}

// HoldIndefinitely returns a policy that never self-expires; the sandbox
// stays open until externally terminated.
func HoldIndefinitely() ExpiryPolicy {
	return ExpiryPolicy{mode: expiryIndefinite}
}

// ExpiryFromEnv parses the EXPIRE_SECONDS wire value. A missing (empty)
// value falls back to the 300-second default so a sandbox launched without
// explicit configuration still expires on its own. A present but
// non-integer value is a configuration fault: callers must fail before
// announcing readiness rather than guess at lifetime semantics.
func ExpiryFromEnv(value string) (ExpiryPolicy, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return HoldFor(DefaultExpireSeconds), nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return ExpiryPolicy{}, fmt.Errorf("parse %s value %q: %w", EnvExpireSeconds, value, err)
	}
	return EvaluateExpiry(n), nil
}

// Indefinite reports whether the sandbox never self-expires.
func (p ExpiryPolicy) Indefinite() bool { return p.mode == expiryIndefinite }

// Unset reports whether the policy is the zero value.
func (p ExpiryPolicy) Unset() bool { return p.mode == expiryUnset }

// Seconds returns the bounded lifetime in seconds, or 0 for indefinite
// and unset policies.
func (p ExpiryPolicy) Seconds() int {
	if p.mode == expiryBounded {
		return p.seconds
	}
	return 0
}

// Duration returns the bounded lifetime, or 0 for indefinite and unset
// policies.
func (p ExpiryPolicy) Duration() time.Duration {
	return time.Duration(p.Seconds()) * time.Second
}

// OrDefault returns the policy itself when set, otherwise the bounded
// default.
func (p ExpiryPolicy) OrDefault() ExpiryPolicy {
	if p.mode == expiryUnset {
		return HoldFor(DefaultExpireSeconds)
	}
	return p
}

// EnvValue renders the EXPIRE_SECONDS wire value for this policy. Unset
// policies render the default.
func (p ExpiryPolicy) EnvValue() string {
	switch p.mode {
	case expiryBounded:
		return strconv.Itoa(p.seconds)
	case expiryIndefinite:
		return "0"
	default:
		return strconv.Itoa(DefaultExpireSeconds)
	}
}

// String describes the policy for logs and announcements.
func (p ExpiryPolicy) String() string {
	switch p.mode {
	case expiryBounded:
		return fmt.Sprintf("expire after %ds", p.seconds)
	case expiryIndefinite:
		return "never expire"
	default:
		return "unset"
	}
}
