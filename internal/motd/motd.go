// Package motd synthesizes server-list-ping status-response JSON
// documents from a route's per-BackendState MOTD templates, per
// spec.md §4.F.
package motd

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
)

// BackendState mirrors internal/servermanager.State in lower case and adds
// proxy-side states; internal/proxy translates one into the other.
type BackendState string

const (
	StateRunning      BackendState = "running"
	StateStarting     BackendState = "starting"
	StateStopping     BackendState = "stopping"
	StateStopped      BackendState = "stopped"
	StateCrashed      BackendState = "crashed"
	StateUnknown      BackendState = "unknown"
	StateShuttingDown BackendState = "shutting_down" // proxy draining, not a backend state
	StateUnreachable  BackendState = "unreachable"
	StateUnableStatus BackendState = "unable_status"
	StateNoRoute      BackendState = "no_route"
)

// Template is the raw, route-configured MOTD for one BackendState.
type Template struct {
	VersionName     string
	ProtocolVersion int
	MaxPlayers      int
	OnlinePlayers   int
	Text            string // supports a single ${seconds_remaining} placeholder
	Favicon         string // base64 data URI, verbatim, or a filesystem path to a PNG
	Sample          []string
}

// installedTemplate is a Template with its favicon already resolved to a
// data URI (or empty, if reading a path failed — never fatal).
type installedTemplate struct {
	Template
	favicon string
}

// Synthesizer turns installed templates into status-response JSON.
type Synthesizer struct {
	log       logr.Logger
	templates map[BackendState]installedTemplate
}

// Install builds a Synthesizer from raw per-state templates, reading any
// filesystem favicon paths once up front.
func Install(log logr.Logger, templates map[BackendState]Template) *Synthesizer {
	installed := make(map[BackendState]installedTemplate, len(templates))
	for state, tmpl := range templates {
		installed[state] = installedTemplate{
			Template: tmpl,
			favicon:  resolveFavicon(log, tmpl.Favicon),
		}
	}
	return &Synthesizer{log: log, templates: installed}
}

// resolveFavicon accepts a base64 data URI verbatim, or treats the value
// as a filesystem path to a PNG to be read and base64-encoded. If reading
// fails, the favicon is simply omitted (never fatal), per spec.md §4.F.
func resolveFavicon(log logr.Logger, favicon string) string {
	if favicon == "" {
		return ""
	}
	if strings.HasPrefix(favicon, "data:") {
		return favicon
	}
	data, err := os.ReadFile(favicon)
	if err != nil {
		log.V(1).Info("favicon read failed, omitting from status response", "path", favicon, "error", err.Error())
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// response is the wire shape of a server-list-ping status response.
type response struct {
	Version     responseVersion     `json:"version"`
	Players     responsePlayers     `json:"players"`
	Description responseDescription `json:"description"`
	Favicon     string              `json:"favicon,omitempty"`
}

type responseVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type responsePlayers struct {
	Max    int              `json:"max"`
	Online int              `json:"online"`
	Sample []responseSample `json:"sample,omitempty"`
}

type responseSample struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type responseDescription struct {
	Text string `json:"text"`
}

// Synthesize renders the JSON status-response document for the given
// state. secondsRemaining fills any ${seconds_remaining} placeholder in the
// template text, whatever the state.
func (s *Synthesizer) Synthesize(state BackendState, secondsRemaining int) (string, bool) {
	tmpl, ok := s.templates[state]
	if !ok {
		return "", false
	}

	text := tmpl.Text
	if strings.Contains(text, "${seconds_remaining}") {
		text = strings.ReplaceAll(text, "${seconds_remaining}", strconv.Itoa(secondsRemaining))
	}

	sample := make([]responseSample, 0, len(tmpl.Sample))
	for _, name := range tmpl.Sample {
		sample = append(sample, responseSample{Name: name})
	}

	resp := response{
		Version:     responseVersion{Name: tmpl.VersionName, Protocol: tmpl.ProtocolVersion},
		Players:     responsePlayers{Max: tmpl.MaxPlayers, Online: tmpl.OnlinePlayers, Sample: sample},
		Description: responseDescription{Text: text},
		Favicon:     tmpl.favicon,
	}

	b, err := json.Marshal(resp)
	if err != nil {
		s.log.Error(err, "failed to marshal status response", "state", state)
		return "", false
	}
	return string(b), true
}
