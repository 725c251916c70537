// Package sensor exposes one read-only entity per NTI param ID on top of the
// coordinator's cached snapshot.
package sensor

import (
	"fmt"
	"strings"

	"github.com/victorjacobs/go-remotethermo/coordinator"
)

const (
	UniqueIDPrefix = "nti_remotethermo"

	StateClassMeasurement = "measurement"
)

// Source is the read side of the coordinator.
type Source interface {
	Get(paramID string) (coordinator.Param, bool)
	LastUpdateSuccess() bool
}

type Sensor struct {
	paramID  string
	clientID string
	source   Source
}

func New(clientID string, paramID string, source Source) *Sensor {
	return &Sensor{
		paramID:  paramID,
		clientID: clientID,
		source:   source,
	}
}

func FromParamIDs(clientID string, paramIDs []string, source Source) []*Sensor {
	sensors := make([]*Sensor, 0, len(paramIDs))
	for _, paramID := range paramIDs {
		sensors = append(sensors, New(clientID, paramID, source))
	}

	return sensors
}

func (s *Sensor) ParamID() string {
	return s.paramID
}

func (s *Sensor) UniqueID() string {
	return fmt.Sprintf("%v_%v_%v", UniqueIDPrefix, s.clientID, s.paramID)
}

// FallbackName is shown until the vendor has reported a label.
func (s *Sensor) FallbackName() string {
	return "NTI " + s.paramID
}

func (s *Sensor) Name() string {
	param, ok := s.source.Get(s.paramID)
	if !ok {
		return s.FallbackName()
	}

	if label, ok := param["label"].(string); ok && strings.TrimSpace(label) != "" {
		return strings.TrimSpace(label)
	}

	return param.ID()
}

func (s *Sensor) NativeValue() (any, bool) {
	param, ok := s.source.Get(s.paramID)
	if !ok {
		return nil, false
	}

	return param["value"], true
}

func (s *Sensor) Unit() string {
	param, ok := s.source.Get(s.paramID)
	if !ok {
		return ""
	}

	if unit, ok := param["unitLabel"].(string); ok {
		return strings.TrimSpace(unit)
	}

	return ""
}

func (s *Sensor) Attributes() map[string]any {
	param, ok := s.source.Get(s.paramID)
	if !ok {
		return map[string]any{}
	}

	return map[string]any{
		"param_id":       param["id"],
		"fullIdentifier": param["fullIdentifier"],
		"readOnly":       param["readOnly"],
		"decimals":       param["decimals"],
		"min":            param["min"],
		"max":            param["max"],
		"anyError":       param["anyError"],
	}
}

func (s *Sensor) StateClass() string {
	return StateClassMeasurement
}

func (s *Sensor) Available() bool {
	return s.source.LastUpdateSuccess()
}
