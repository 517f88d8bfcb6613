package motd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
)

func TestSynthesizeShuttingDownPlaceholder(t *testing.T) {
	s := Install(logr.Discard(), map[BackendState]Template{
		StateShuttingDown: {
			VersionName:     "1.20.4",
			ProtocolVersion: 765,
			MaxPlayers:      20,
			Text:            "Shutting down in ${seconds_remaining}s",
		},
	})

	payload, ok := s.Synthesize(StateShuttingDown, 7)
	if !ok {
		t.Fatal("expected a template for StateShuttingDown")
	}
	if !strings.Contains(payload, "Shutting down in 7s") {
		t.Fatalf("expected placeholder substitution, got %s", payload)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("synthesized payload is not valid json: %v", err)
	}
}

func TestSynthesizeMissingStateReturnsFalse(t *testing.T) {
	s := Install(logr.Discard(), map[BackendState]Template{})
	if _, ok := s.Synthesize(StateRunning, 0); ok {
		t.Fatal("expected no template for an unconfigured state")
	}
}

func TestFaviconFromDataURIPassedVerbatim(t *testing.T) {
	s := Install(logr.Discard(), map[BackendState]Template{
		StateRunning: {Text: "hi", Favicon: "data:image/png;base64,AAAA"},
	})
	payload, _ := s.Synthesize(StateRunning, 0)
	if !strings.Contains(payload, "data:image/png;base64,AAAA") {
		t.Fatalf("expected verbatim favicon, got %s", payload)
	}
}

func TestFaviconFromFileEncodedBase64(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.png")
	if err := os.WriteFile(path, []byte("fake-png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := Install(logr.Discard(), map[BackendState]Template{
		StateRunning: {Text: "hi", Favicon: path},
	})
	payload, _ := s.Synthesize(StateRunning, 0)
	if !strings.Contains(payload, "data:image/png;base64,") {
		t.Fatalf("expected base64-encoded favicon, got %s", payload)
	}
}

func TestFaviconReadFailureOmittedNotFatal(t *testing.T) {
	s := Install(logr.Discard(), map[BackendState]Template{
		StateRunning: {Text: "hi", Favicon: "/does/not/exist.png"},
	})
	payload, ok := s.Synthesize(StateRunning, 0)
	if !ok {
		t.Fatal("expected synthesis to still succeed")
	}
	if strings.Contains(payload, "favicon") {
		t.Fatalf("expected favicon field to be omitted, got %s", payload)
	}
}
