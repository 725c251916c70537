package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultScanInterval = 300
	MinScanInterval     = 5
)

var DefaultParamIDs = []string{
	"T8_3_0",
	"T8_3_1",
	"T8_3_2",
	"T8_3_4",
	"T8_3_5",
	"T8_2_8",
	"T8_4_0",
	"T8_7_8",
	"T8_7_9",
}

// Options are the user-editable settings of an installation.
type Options struct {
	ParamIDs ParamIDs `json:"param_ids" yaml:"param_ids"`
	// ScanInterval is in seconds; zero means "not set".
	ScanInterval int `json:"scan_interval" yaml:"scan_interval"`
}

func DefaultOptions() Options {
	return Options{
		ParamIDs:     append(ParamIDs(nil), DefaultParamIDs...),
		ScanInterval: DefaultScanInterval,
	}
}

// Normalize fills in defaults for missing values, drops repeated param IDs
// and enforces the scan interval floor.
func (o Options) Normalize() Options {
	o.ParamIDs = ParseParamIDs([]string(o.ParamIDs))
	if len(o.ParamIDs) == 0 {
		o.ParamIDs = append(ParamIDs(nil), DefaultParamIDs...)
	}

	if o.ScanInterval == 0 {
		o.ScanInterval = DefaultScanInterval
	}

	o.ScanInterval = ClampScanInterval(o.ScanInterval)

	return o
}

func (o Options) Interval() time.Duration {
	return time.Duration(o.ScanInterval) * time.Second
}

func ClampScanInterval(seconds int) int {
	if seconds < MinScanInterval {
		return MinScanInterval
	}

	return seconds
}

// ParamIDs accepts either a comma-separated string or a list when decoded.
type ParamIDs []string

func (p *ParamIDs) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ids, err := parseParamIDs(raw)
	if err != nil {
		return err
	}

	*p = ids

	return nil
}

func (p *ParamIDs) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	ids, err := parseParamIDs(raw)
	if err != nil {
		return err
	}

	*p = ids

	return nil
}

func (p ParamIDs) String() string {
	return strings.Join(p, ",")
}

// ParseParamIDs turns a comma-separated string or a list into trimmed,
// non-empty, unique param IDs. Anything else yields an empty list.
func ParseParamIDs(raw any) []string {
	ids, _ := parseParamIDs(raw)

	return ids
}

func parseParamIDs(raw any) (ParamIDs, error) {
	var items []string

	switch v := raw.(type) {
	case nil:
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	default:
		return ParamIDs{}, fmt.Errorf("param_ids: expected string or list, got %T", raw)
	}

	// Each ID backs one entity, so only the first occurrence counts
	ids := ParamIDs{}
	seen := make(map[string]bool, len(items))
	for _, id := range items {
		if id = strings.TrimSpace(id); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids, nil
}
