package domain

import (
	"testing"
	"time"
)

func TestEffectiveTTL(t *testing.T) {
	cases := []struct {
		seconds int
		want    time.Duration
	}{
		{3600, time.Hour},
		{60, time.Minute},
		{0, DefaultCacheTTL},
		{-10, DefaultCacheTTL},
	}
	for _, tc := range cases {
		got := Settings{CacheTTLSeconds: tc.seconds}.EffectiveTTL()
		if got != tc.want {
			t.Fatalf("EffectiveTTL(%d) = %v, want %v", tc.seconds, got, tc.want)
		}
	}
}

func TestDefaultSettings(t *testing.T) {
	st := DefaultSettings()
	if st.CacheTTLSeconds != 3600 {
		t.Fatalf("expected 3600s default ttl, got %d", st.CacheTTLSeconds)
	}
	if st.EnableCron {
		t.Fatal("scheduled refresh must be off until explicitly enabled")
	}
}
