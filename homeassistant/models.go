package homeassistant

type deviceConfiguration struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type sensorConfiguration struct {
	UniqueId            string              `json:"unique_id"`
	Name                string              `json:"name"`
	StateTopic          string              `json:"state_topic"`
	JsonAttributesTopic string              `json:"json_attributes_topic"`
	AvailabilityTopic   string              `json:"availability_topic"`
	UnitOfMeasurement   string              `json:"unit_of_measurement,omitempty"`
	StateClass          string              `json:"state_class,omitempty"`
	Device              deviceConfiguration `json:"device"`
}

// Sensor is what the client needs to know about an entity to announce it.
type Sensor interface {
	UniqueID() string
	Name() string
	Unit() string
	StateClass() string
}
