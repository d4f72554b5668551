package hass

import (
	"encoding/json"
)

// Context links states and events to the action that caused them.
type Context struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	UserID   *string `json:"user_id"`
}

// State is one entity state object as returned by get_states.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	LastChanged string         `json:"last_changed"`
	LastUpdated string         `json:"last_updated"`
	Attributes  map[string]any `json:"attributes"`
	Context     Context        `json:"context"`
}

type UnitSystem struct {
	Length      string `json:"length"`
	Mass        string `json:"mass"`
	Pressure    string `json:"pressure"`
	Temperature string `json:"temperature"`
	Volume      string `json:"volume"`
}

// ServerConfig is the get_config result.
type ServerConfig struct {
	Latitude              float64    `json:"latitude"`
	Longitude             float64    `json:"longitude"`
	Elevation             float64    `json:"elevation"`
	UnitSystem            UnitSystem `json:"unit_system"`
	LocationName          string     `json:"location_name"`
	TimeZone              string     `json:"time_zone"`
	Components            []string   `json:"components"`
	ConfigDir             string     `json:"config_dir"`
	WhitelistExternalDirs []string   `json:"whitelist_external_dirs"`
	Version               string     `json:"version"`
	ConfigSource          string     `json:"config_source"`
	SafeMode              bool       `json:"safe_mode"`
	ExternalURL           *string    `json:"external_url"`
	InternalURL           *string    `json:"internal_url"`
}

// Services maps domain -> service name -> description.
type Services map[string]map[string]Service

type Service struct {
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description"`
	Fields      map[string]Field `json:"fields"`
}

type Field struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description"`
	Example     any    `json:"example,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Panels maps url path -> panel.
type Panels map[string]Panel

type Panel struct {
	ComponentName string       `json:"component_name"`
	Config        *PanelConfig `json:"config"`
	Icon          *string      `json:"icon"`
	RequireAdmin  bool         `json:"require_admin"`
	Title         *string      `json:"title"`
	URLPath       string       `json:"url_path"`
}

type PanelConfig struct {
	CustomPanel *CustomPanelConfig `json:"_panel_custom,omitempty"`
	Mode        *string            `json:"mode,omitempty"`
	Title       *string            `json:"title,omitempty"`
}

type CustomPanelConfig struct {
	EmbedIframe   bool    `json:"embed_iframe"`
	ModuleURL     *string `json:"module_url"`
	JSURL         *string `json:"js_url"`
	Name          string  `json:"name"`
	TrustExternal bool    `json:"trust_external"`
}

// Area is one config/area_registry/list entry.
type Area struct {
	Aliases             []string `json:"aliases"`
	AreaID              string   `json:"area_id"`
	FloorID             *string  `json:"floor_id"`
	HumidityEntityID    *string  `json:"humidity_entity_id"`
	Icon                *string  `json:"icon"`
	Labels              []string `json:"labels"`
	Name                string   `json:"name"`
	Picture             *string  `json:"picture"`
	TemperatureEntityID *string  `json:"temperature_entity_id"`
	CreatedAt           float64  `json:"created_at"`
	ModifiedAt          float64  `json:"modified_at"`
}

// Device is one config/device_registry/list entry.
type Device struct {
	AreaID                  *string                      `json:"area_id"`
	ConfigurationURL        *string                      `json:"configuration_url"`
	ConfigEntries           []string                     `json:"config_entries"`
	ConfigEntriesSubentries map[string][]json.RawMessage `json:"config_entries_subentries"`
	Connections             [][]string                   `json:"connections"`
	CreatedAt               float64                      `json:"created_at"`
	DisabledBy              *string                      `json:"disabled_by"`
	EntryType               *string                      `json:"entry_type"`
	HWVersion               *string                      `json:"hw_version"`
	ID                      string                       `json:"id"`
	Identifiers             [][]string                   `json:"identifiers"`
	Labels                  []string                     `json:"labels"`
	Manufacturer            *string                      `json:"manufacturer"`
	Model                   *string                      `json:"model"`
	ModelID                 *string                      `json:"model_id"`
	ModifiedAt              float64                      `json:"modified_at"`
	NameByUser              *string                      `json:"name_by_user"`
	Name                    string                       `json:"name"`
	PrimaryConfigEntry      *string                      `json:"primary_config_entry"`
	SerialNumber            *string                      `json:"serial_number"`
	SWVersion               *string                      `json:"sw_version"`
	ViaDeviceID             *string                      `json:"via_device_id"`
}

// EntityEntry is one config/entity_registry/list entry.
type EntityEntry struct {
	AreaID           *string                    `json:"area_id"`
	Categories       map[string]json.RawMessage `json:"categories"`
	ConfigEntryID    *string                    `json:"config_entry_id"`
	ConfigSubentryID *string                    `json:"config_subentry_id"`
	CreatedAt        float64                    `json:"created_at"`
	DeviceID         *string                    `json:"device_id"`
	DisabledBy       *string                    `json:"disabled_by"`
	EntityCategory   *string                    `json:"entity_category"`
	EntityID         string                     `json:"entity_id"`
	HasEntityName    bool                       `json:"has_entity_name"`
	HiddenBy         *string                    `json:"hidden_by"`
	Icon             *string                    `json:"icon"`
	ID               string                     `json:"id"`
	Labels           []string                   `json:"labels"`
	ModifiedAt       float64                    `json:"modified_at"`
	Name             *string                    `json:"name"`
	Options          map[string]json.RawMessage `json:"options"`
	OriginalName     *string                    `json:"original_name"`
	Platform         string                     `json:"platform"`
	TranslationKey   *string                    `json:"translation_key"`
	UniqueID         string                     `json:"unique_id"`
}

// Event is the nested event object of an event frame.
type Event struct {
	Data      EventData `json:"data"`
	EventType string    `json:"event_type"`
	TimeFired string    `json:"time_fired"`
	Origin    string    `json:"origin"`
	Context   Context   `json:"context"`
}

// EventData carries the state_changed fields; anything else lands in Extra.
type EventData struct {
	EntityID *string
	NewState *State
	OldState *State
	Extra    map[string]json.RawMessage
}

func (d *EventData) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*d = EventData{}
	if err := takeField(fields, "entity_id", &d.EntityID); err != nil {
		return err
	}
	if err := takeField(fields, "new_state", &d.NewState); err != nil {
		return err
	}
	if err := takeField(fields, "old_state", &d.OldState); err != nil {
		return err
	}
	if len(fields) > 0 {
		d.Extra = fields
	}
	return nil
}

func (d EventData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.EntityID != nil {
		out["entity_id"] = d.EntityID
	}
	if d.NewState != nil {
		out["new_state"] = d.NewState
	}
	if d.OldState != nil {
		out["old_state"] = d.OldState
	}
	return json.Marshal(out)
}

func takeField(fields map[string]json.RawMessage, name string, out any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	delete(fields, name)
	return json.Unmarshal(raw, out)
}
