// Documentation: https://ascom-standards.org/api/?urls.primaryName=ASCOM+Alpaca+Management+API

package alpaca

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

type ServerDescription struct {
	Name                string `json:"ServerName"`
	Manufacturer        string `json:"Manufacturer"`
	ManufacturerVersion string `json:"ManufacturerVersion"`
	Location            string `json:"Location"`
}

// mountedDevice is a device together with the paths it is served under.
type mountedDevice struct {
	dev       Device
	apiPath   string
	setupPath string
}

// SetupURL is the device's own setup page, or empty when it has none.
func (m mountedDevice) SetupURL() string {
	if _, ok := m.dev.(SetupHandler); !ok {
		return ""
	}
	return m.setupPath + "/setup"
}

func (m mountedDevice) Info() DeviceInfo   { return m.dev.DeviceInfo() }
func (m mountedDevice) Driver() DriverInfo { return m.dev.DriverInfo() }
func (m mountedDevice) Connected() bool    { return m.dev.Connected() }

// Server is an Alpaca management server that provides information
// about the server and the devices it manages.
type Server struct {
	description ServerDescription
	devices     []mountedDevice

	db   *Store
	tmpl *template.Template
}

// NewServer mounts the devices under their type and number. A device whose
// type and number are already taken is skipped.
func NewServer(description ServerDescription, devices []Device, db *Store, tmpl *template.Template) *Server {
	s := &Server{
		description: description,
		db:          db,
		tmpl:        tmpl,
	}

	seen := make(map[string]bool, len(devices))
	for _, dev := range devices {
		info := dev.DeviceInfo()
		key := fmt.Sprintf("%s/%d", strings.ToLower(info.Type.String()), info.Number)
		if seen[key] {
			log.Errorf("Skipping %s: %s is already served", info.Name, key)
			continue
		}
		seen[key] = true

		s.devices = append(s.devices, mountedDevice{
			dev:       dev,
			apiPath:   "/api/v1/" + key,
			setupPath: "/setup/v1/" + key,
		})
	}
	return s
}

type DeviceHTTPHandler interface {
	RegisterRoutes(mux *http.ServeMux)
}

func deviceHandler(dev Device) DeviceHTTPHandler {
	if f, ok := dev.(Focuser); ok {
		return NewFocuserHandler(f)
	}
	log.Errorf("Unknown device type: %T", dev)
	return NewDeviceHandler(dev)
}

func (s *Server) AddRoutes() *http.ServeMux {
	r := http.NewServeMux()

	r.Handle("GET /management/apiversions", handleMgm(s.handleAPIVersions))
	r.Handle("GET /management/v1/description", handleMgm(s.handleDescription))
	r.Handle("GET /management/v1/configureddevices", handleMgm(s.handleConfiguredDevices))
	r.HandleFunc("/setup", s.handleSetup)

	for _, m := range s.devices {
		log.Infof("Serving %s at %s", m.Info().Name, m.apiPath)

		mux := http.NewServeMux()
		deviceHandler(m.dev).RegisterRoutes(mux)

		r.Handle(m.apiPath+"/", http.StripPrefix(m.apiPath, mux))
		r.Handle(m.setupPath+"/", http.StripPrefix(m.setupPath, mux))
	}

	return r
}

func (s *Server) handleAPIVersions(r *http.Request) (any, error) {
	return []int{1}, nil
}

// handleDescription reports the location stored through the setup page.
func (s *Server) handleDescription(r *http.Request) (any, error) {
	desc := s.description
	cfg, err := s.db.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read server config: %v", err)
	}
	desc.Location = cfg.Location
	return desc, nil
}

func (s *Server) handleConfiguredDevices(r *http.Request) (any, error) {
	infos := make([]DeviceInfo, len(s.devices))
	for i, m := range s.devices {
		infos[i] = m.Info()
	}
	return infos, nil
}

// setupPage is what setup.html renders.
type setupPage struct {
	Config
	Description ServerDescription
	Devices     []mountedDevice
	Success     bool
	Error       string
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	page := setupPage{Description: s.description, Devices: s.devices}

	switch r.Method {
	case http.MethodGet:
		cfg, err := s.db.GetConfig()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		page.Config = cfg

	case http.MethodPost:
		cfg, err := parseSetupForm(r)
		page.Config = cfg
		if err != nil {
			page.Error = err.Error()
			break
		}

		log.Infof("Server location set to %q", cfg.Location)
		if err := s.db.SetConfig(cfg); err != nil {
			page.Error = err.Error()
			break
		}
		page.Success = true

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.tmpl.ExecuteTemplate(w, "setup.html", page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseSetupForm(r *http.Request) (Config, error) {
	if err := r.ParseForm(); err != nil {
		return Config{}, fmt.Errorf("error parsing form: %v", err)
	}

	cfg := Config{Location: strings.TrimSpace(r.FormValue("location"))}
	if cfg.Location == "" {
		return cfg, fmt.Errorf("location cannot be empty")
	}
	return cfg, nil
}
