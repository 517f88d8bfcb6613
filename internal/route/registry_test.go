package route

import "testing"

func mustReplace(t *testing.T, r *Registry, configs []ServerConfig) {
	t.Helper()
	if err := r.Replace(configs); err != nil {
		t.Fatalf("Replace: %v", err)
	}
}

func TestExactMatchWinsOverWildcard(t *testing.T) {
	r := NewRegistry()
	mustReplace(t, r, []ServerConfig{
		{ConfigID: "hub", HostPatterns: []string{"hub.example.com"}, Backends: []Endpoint{{Address: "10.0.0.1:25565"}}, Mode: ModePassthrough},
		{ConfigID: "wild", HostPatterns: []string{"*.example.com"}, Backends: []Endpoint{{Address: "10.0.0.2:25565"}}, Mode: ModePassthrough},
	})

	c, err := r.Resolve("hub.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if c.ConfigID != "hub" {
		t.Fatalf("expected exact match to win, got %s", c.ConfigID)
	}

	c, err = r.Resolve("play.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if c.ConfigID != "wild" {
		t.Fatalf("expected wildcard match, got %s", c.ConfigID)
	}

	if _, err := r.Resolve("example.com"); err != ErrNoRoute {
		t.Fatalf("expected no route for bare domain, got %v", err)
	}
}

func TestLongestWildcardSuffixWins(t *testing.T) {
	r := NewRegistry()
	mustReplace(t, r, []ServerConfig{
		{ConfigID: "R1", HostPatterns: []string{"*.example.com"}, Backends: []Endpoint{{Address: "10.0.0.1:25565"}}, Mode: ModePassthrough},
		{ConfigID: "R2", HostPatterns: []string{"*.play.example.com"}, Backends: []Endpoint{{Address: "10.0.0.2:25565"}}, Mode: ModePassthrough},
	})

	c, err := r.Resolve("survival.play.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if c.ConfigID != "R2" {
		t.Fatalf("expected longest-suffix route R2, got %s", c.ConfigID)
	}

	c, err = r.Resolve("foo.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if c.ConfigID != "R1" {
		t.Fatalf("expected R1 for non-play subdomain, got %s", c.ConfigID)
	}

	if _, err := r.Resolve("play.example.com"); err != ErrNoRoute {
		t.Fatalf("*.play.example.com must not match play.example.com itself, got %v", err)
	}
}

func TestWildcardTieBreakByInsertionOrder(t *testing.T) {
	r := NewRegistry()
	mustReplace(t, r, []ServerConfig{
		{ConfigID: "first", HostPatterns: []string{"*.dup.example.com"}, Backends: []Endpoint{{Address: "10.0.0.1:25565"}}, Mode: ModePassthrough},
		{ConfigID: "second", HostPatterns: []string{"*.dup.example.com"}, Backends: []Endpoint{{Address: "10.0.0.2:25565"}}, Mode: ModePassthrough},
	})

	c, err := r.Resolve("a.dup.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if c.ConfigID != "first" {
		t.Fatalf("expected stable insertion order to pick first, got %s", c.ConfigID)
	}
}

func TestReplaceRejectsFullMode(t *testing.T) {
	r := NewRegistry()
	err := r.Replace([]ServerConfig{
		{ConfigID: "bad", HostPatterns: []string{"full.example.com"}, Backends: []Endpoint{{Address: "10.0.0.1:25565"}}, Mode: ModeFull},
	})
	if err != ErrFullModeUnsupported {
		t.Fatalf("expected ErrFullModeUnsupported, got %v", err)
	}
}

func TestInFlightSessionKeepsCapturedConfig(t *testing.T) {
	r := NewRegistry()
	mustReplace(t, r, []ServerConfig{
		{ConfigID: "A", HostPatterns: []string{"a.example.com"}, Backends: []Endpoint{{Address: "10.0.0.1:25565"}}, Mode: ModePassthrough},
	})
	captured, err := r.Resolve("a.example.com")
	if err != nil {
		t.Fatal(err)
	}

	mustReplace(t, r, nil) // config removed entirely

	// The registry no longer has it...
	if _, err := r.Resolve("a.example.com"); err != ErrNoRoute {
		t.Fatalf("expected removal to take effect, got %v", err)
	}
	// ...but the session's already-captured snapshot is untouched.
	if captured.ConfigID != "A" {
		t.Fatalf("captured config mutated after registry replace")
	}
}
