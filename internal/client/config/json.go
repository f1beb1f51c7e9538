package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dbrusnev/notelock/internal/flagx"
	"github.com/dbrusnev/notelock/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the timeout either as a string like
// "15s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	KeyStoreDSN        string         `json:"keystore_dsn"`
	ExportEndpointAddr string         `json:"export_endpoint_addr"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with values loaded from the JSON file selected via
// the -c/-config flags (flagx.JsonConfigFlags). Absent file path means no
// JSON is loaded; read or unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.KeyStoreDSN != "" {
		cfg.KeyStoreDSN = jc.KeyStoreDSN
	}
	if jc.ExportEndpointAddr != "" {
		cfg.ExportEndpointAddr = jc.ExportEndpointAddr
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
}
