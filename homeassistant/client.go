package homeassistant

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	publishTimeout = 10 * time.Second
	unknownState   = "None"
)

// Publisher is the subset of mqtt.Client used here.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Client struct {
	mqtt            Publisher
	discoveryPrefix string
	topicPrefix     string
	clientID        string
}

func NewClient(mqtt Publisher, discoveryPrefix string, topicPrefix string, clientID string) *Client {
	return &Client{
		mqtt:            mqtt,
		discoveryPrefix: discoveryPrefix,
		topicPrefix:     topicPrefix,
		clientID:        clientID,
	}
}

func (h *Client) AvailabilityTopic() string {
	return h.topicPrefix + "/availability"
}

func (h *Client) StateTopic(uniqueId string) string {
	return fmt.Sprintf("%v/%v/state", h.topicPrefix, uniqueId)
}

func (h *Client) AttributesTopic(uniqueId string) string {
	return fmt.Sprintf("%v/%v/attributes", h.topicPrefix, uniqueId)
}

func (h *Client) ConfigTopic(uniqueId string) string {
	return fmt.Sprintf("%v/sensor/%v/config", h.discoveryPrefix, uniqueId)
}

func (h *Client) RegisterSensor(sensor Sensor) error {
	uniqueId := sensor.UniqueID()

	sensorConfiguration, err := json.Marshal(sensorConfiguration{
		UniqueId:            uniqueId,
		Name:                sensor.Name(),
		StateTopic:          h.StateTopic(uniqueId),
		JsonAttributesTopic: h.AttributesTopic(uniqueId),
		AvailabilityTopic:   h.AvailabilityTopic(),
		UnitOfMeasurement:   sensor.Unit(),
		StateClass:          sensor.StateClass(),
		Device: deviceConfiguration{
			Identifiers:  []string{"nti_remotethermo_" + h.clientID},
			Name:         fmt.Sprintf("NTI RemoteThermo (%v)", h.clientID),
			Manufacturer: "NTI",
			Model:        "RemoteThermo",
		},
	})
	if err != nil {
		return err
	}

	return h.publish(h.ConfigTopic(uniqueId), true, sensorConfiguration)
}

func (h *Client) UnregisterSensor(uniqueId string) error {
	return h.publish(h.ConfigTopic(uniqueId), true, []byte{})
}

// PublishState publishes value as the sensor state. A nil value is sent as
// "None", which Home Assistant renders as unknown.
func (h *Client) PublishState(uniqueId string, value interface{}) error {
	payload, err := statePayload(value)
	if err != nil {
		return err
	}

	return h.publish(h.StateTopic(uniqueId), true, payload)
}

func statePayload(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return unknownState, nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case map[string]any, []any:
		payload, err := json.Marshal(v)
		if err != nil {
			return "", err
		}

		return string(payload), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (h *Client) PublishAttributes(uniqueId string, attributes map[string]any) error {
	payload, err := json.Marshal(attributes)
	if err != nil {
		return err
	}

	return h.publish(h.AttributesTopic(uniqueId), true, payload)
}

func (h *Client) PublishAvailability(available bool) error {
	status := "offline"
	if available {
		status = "online"
	}

	return h.publish(h.AvailabilityTopic(), true, status)
}

func (h *Client) publish(topic string, retained bool, payload interface{}) error {
	t := h.mqtt.Publish(topic, 0, retained, payload)
	if !t.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %v timed out", topic)
	}

	return t.Error()
}
