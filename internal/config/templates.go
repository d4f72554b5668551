package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client", "":
		return clientTemplate, nil
	case "tls":
		return tlsTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `url = "ws://localhost:8123/api/websocket"
token_env = "HASS_TOKEN"

[dial]
connect_timeout = "5s"
handshake_timeout = "10s"
max_attempts = 3

[session]
event_buffer = 20
outbound_buffer = 20
write_timeout = "10s"
`

const tlsTemplate = `url = "wss://homeassistant.local:8123/api/websocket"
token_env = "HASS_TOKEN"

[tls]
ca_file = "certs/ca.crt"
server_name = "homeassistant.local"

[dial]
connect_timeout = "5s"
handshake_timeout = "10s"
max_attempts = 5

[session]
event_buffer = 50
outbound_buffer = 20
write_timeout = "10s"
`
