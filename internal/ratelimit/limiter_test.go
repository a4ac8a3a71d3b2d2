// SPDX-License-Identifier: MIT

package ratelimit

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestPerIPLimit(t *testing.T) {
	l := New(Config{
		GlobalRate:      1000,
		GlobalBurst:     1000,
		PerIPRate:       rate.Limit(1),
		PerIPBurst:      2,
		CleanupInterval: time.Hour,
	})

	// Burst of 2 allowed, third rejected.
	if !l.Allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	if !l.Allow("10.0.0.1") {
		t.Fatal("second request should pass")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("third request should be limited")
	}

	// A different IP has its own budget.
	if !l.Allow("10.0.0.2") {
		t.Fatal("other IP should pass")
	}
}

func TestGlobalLimit(t *testing.T) {
	l := New(Config{
		GlobalRate:      rate.Limit(1),
		GlobalBurst:     1,
		PerIPRate:       1000,
		PerIPBurst:      1000,
		CleanupInterval: time.Hour,
	})

	if !l.Allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	if l.Allow("10.0.0.2") {
		t.Fatal("global budget exhausted, request should be limited")
	}
}

func TestCleanupResetsIPBudgets(t *testing.T) {
	l := New(Config{
		GlobalRate:      1000,
		GlobalBurst:     1000,
		PerIPRate:       rate.Limit(0.001),
		PerIPBurst:      1,
		CleanupInterval: 0, // cleanup on every call
	})

	if !l.Allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	// Budget exhausted, but the next Allow triggers cleanup first.
	if !l.Allow("10.0.0.1") {
		t.Fatal("expected fresh budget after cleanup")
	}
}
