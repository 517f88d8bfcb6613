package filter

import (
	"net"
	"testing"
	"time"
)

func addr(ip string) net.Addr {
	return &net.TCPAddr{IP: net.ParseIP(ip), Port: 54321}
}

func TestBanLookupRejects(t *testing.T) {
	bans := NewInMemoryBanStore()
	bans.BanIP("1.2.3.4", BanEntry{Reason: "cheating", CreatedAt: time.Now()})

	c := &Chain{Bans: bans}
	if err := c.CheckConnect(addr("1.2.3.4")); err == nil {
		t.Fatal("expected banned ip to be rejected")
	}
	if err := c.CheckConnect(addr("5.6.7.8")); err != nil {
		t.Fatalf("expected unbanned ip to pass, got %v", err)
	}
}

func TestDeniedIPWinsOverAllowedEmpty(t *testing.T) {
	c := &Chain{DeniedIPs: []string{"9.9.9.9"}}
	if err := c.CheckConnect(addr("9.9.9.9")); err == nil {
		t.Fatal("expected denied ip to be rejected")
	}
	if err := c.CheckConnect(addr("1.1.1.1")); err != nil {
		t.Fatalf("expected other ip to pass with empty allow list, got %v", err)
	}
}

func TestAllowListExcludesUnlisted(t *testing.T) {
	c := &Chain{AllowedIPs: []string{"10.0.0.1"}}
	if err := c.CheckConnect(addr("10.0.0.1")); err != nil {
		t.Fatalf("expected allow-listed ip to pass, got %v", err)
	}
	if err := c.CheckConnect(addr("10.0.0.2")); err == nil {
		t.Fatal("expected non-allow-listed ip to be rejected")
	}
}

func TestMaxConcurrentSessionsRejectsEarly(t *testing.T) {
	var live int64
	c := &Chain{MaxConcurrentSessions: 1, LiveSessions: &live}
	c.SessionOpened()
	if err := c.CheckConnect(addr("1.1.1.1")); err == nil {
		t.Fatal("expected rejection once at max concurrent sessions")
	}
	c.SessionClosed()
	if err := c.CheckConnect(addr("1.1.1.1")); err != nil {
		t.Fatalf("expected acceptance after a session closes, got %v", err)
	}
}

func TestRateLimiterBurstThenRefill(t *testing.T) {
	// requests_per_minute=600, burst_size=10: 10 immediate, 11th rejected,
	// then one token back after 100ms at 10 tokens per second.
	rl := NewRateLimiter(600, 10)
	ip := "2.2.2.2"
	for i := 0; i < 10; i++ {
		if !rl.Allow(ip) {
			t.Fatalf("expected request %d to be allowed within burst", i)
		}
	}
	if rl.Allow(ip) {
		t.Fatal("expected 11th request to be rejected")
	}
	time.Sleep(150 * time.Millisecond)
	if !rl.Allow(ip) {
		t.Fatal("expected a request to be allowed again after refill")
	}
}

func TestLoginFiltersCheckUsernameAndUUID(t *testing.T) {
	bans := NewInMemoryBanStore()
	bans.BanName("griefer", BanEntry{Reason: "greifing"})
	bans.BanUUID("abc-123", BanEntry{Reason: "alt account"})

	c := &Chain{Bans: bans}
	if err := c.CheckLogin("griefer", ""); err == nil {
		t.Fatal("expected banned username to be rejected")
	}
	if err := c.CheckLogin("steve", "abc-123"); err == nil {
		t.Fatal("expected banned uuid to be rejected")
	}
	if err := c.CheckLogin("steve", "def-456"); err != nil {
		t.Fatalf("expected clean login to pass, got %v", err)
	}
}
