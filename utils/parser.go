package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vitwit/invoicepay/types"
	"gopkg.in/yaml.v3"
)

// configFile is the on-disk shape of types.Config; durations are written as
// Go duration strings ("5s", "1m30s").
type configFile struct {
	BackendURL        string `json:"backendUrl" yaml:"backendUrl"`
	RequestTimeout    string `json:"requestTimeout" yaml:"requestTimeout"`
	PollInterval      string `json:"pollInterval" yaml:"pollInterval"`
	CountdownInterval string `json:"countdownInterval" yaml:"countdownInterval"`
	LogLevel          string `json:"logLevel" yaml:"logLevel"`
	EnableMetrics     bool   `json:"enableMetrics" yaml:"enableMetrics"`
	SolanaRPCURL      string `json:"solanaRpcUrl" yaml:"solanaRpcUrl"`
	EVMRPCURL         string `json:"evmRpcUrl" yaml:"evmRpcUrl"`
}

func (f configFile) toConfig() (*types.Config, error) {
	cfg := types.Config{
		BackendURL:    f.BackendURL,
		LogLevel:      f.LogLevel,
		EnableMetrics: f.EnableMetrics,
		SolanaRPCURL:  f.SolanaRPCURL,
		EVMRPCURL:     f.EVMRPCURL,
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"requestTimeout", f.RequestTimeout, &cfg.RequestTimeout},
		{"pollInterval", f.PollInterval, &cfg.PollInterval},
		{"countdownInterval", f.CountdownInterval, &cfg.CountdownInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, types.WrapError(types.ErrConfigError, fmt.Sprintf("invalid %s", d.name), err)
		}
		*d.dst = v
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseConfig parses and validates a Config from JSON
func ParseConfig(data []byte) (*types.Config, error) {
	var f configFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, types.WrapError(types.ErrConfigError, "failed to parse config", err)
	}
	return f.toConfig()
}

// ParseConfigYAML parses and validates a Config from YAML
func ParseConfigYAML(data []byte) (*types.Config, error) {
	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, types.WrapError(types.ErrConfigError, "failed to parse config", err)
	}
	return f.toConfig()
}

// LoadConfig reads a JSON or YAML config file, chosen by extension
func LoadConfig(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.ErrConfigError, "failed to read config", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseConfigYAML(data)
	default:
		return ParseConfig(data)
	}
}

// ParseInvoice decodes an invoice snapshot and checks its invariants
func ParseInvoice(data []byte) (*types.Invoice, error) {
	var inv types.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, types.WrapError(types.ErrInvalidInvoice, "failed to parse invoice", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ParseFlexibleTime parses time fields that might be in different formats
func ParseFlexibleTime(timeStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s", timeStr)
}
