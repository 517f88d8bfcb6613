package sessionservice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestHasJoinedParsesProfile(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Query().Get("username") != "Notch" {
			t.Errorf("unexpected username query param: %q", r.URL.Query().Get("username"))
		}
		_ = json.NewEncoder(w).Encode(Profile{
			ID:   "069a79f444e94726a5befca90e38aaf5",
			Name: "Notch",
			Properties: []Property{
				{Name: "textures", Value: "eyJ0ZXN0IjoidHJ1ZSJ9"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient()
	c.BaseURL = srv.URL

	profile, err := c.HasJoined("Notch", "deadbeef", "")
	if err != nil {
		t.Fatalf("HasJoined: %v", err)
	}
	if profile.Name != "Notch" {
		t.Fatalf("profile.Name = %q, want Notch", profile.Name)
	}
	if len(profile.Properties) != 1 {
		t.Fatalf("expected 1 property, got %d", len(profile.Properties))
	}

	if _, err := c.HasJoined("Notch", "deadbeef", ""); err != nil {
		t.Fatalf("second HasJoined: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 upstream hit due to caching, got %d", got)
	}
}

func TestHasJoinedNon200IsAuthFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient()
	c.BaseURL = srv.URL

	if _, err := c.HasJoined("Griefer", "deadbeef", ""); err == nil {
		t.Fatal("expected error for non-200 session service response")
	}
}
