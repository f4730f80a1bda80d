package config

import "time"

// Registry represents the entire user configuration file. It stores the
// user's explicitly selected server and application preferences. The set
// of discovered servers is deliberately not persisted; discovery rebuilds
// it live on every session.
type Registry struct {
	Version     int          `yaml:"version"`
	Selected    *Server      `yaml:"selected,omitempty"`
	Preferences *Preferences `yaml:"preferences,omitempty"`
}

// Server is the user's selected Doorstep server as last picked.
// The advertised URLs are stored verbatim so the client can reconnect
// without waiting for a fresh discovery pass.
type Server struct {
	Name       string    `yaml:"name,omitempty"`
	Host       string    `yaml:"host"`
	Port       int       `yaml:"port"`
	APIURL     string    `yaml:"api_url"`
	WSURL      string    `yaml:"ws_url"`
	SelectedAt time.Time `yaml:"selected_at,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	// ScanTimeout is the one-shot scan duration in seconds
	ScanTimeout int `yaml:"scan_timeout"`

	// AutoConnect connects to the selected server on startup when set
	AutoConnect bool `yaml:"auto_connect"`
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Preferences: &Preferences{
			ScanTimeout: 10,
			AutoConnect: false,
		},
	}
}

// SetSelected records the user's server choice.
func (r *Registry) SetSelected(name, host string, port int, apiURL, wsURL string) {
	r.Selected = &Server{
		Name:       name,
		Host:       host,
		Port:       port,
		APIURL:     apiURL,
		WSURL:      wsURL,
		SelectedAt: time.Now(),
	}
}

// ClearSelected forgets the user's server choice.
func (r *Registry) ClearSelected() {
	r.Selected = nil
}
