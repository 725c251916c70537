package bridge

import (
	"github.com/victorjacobs/go-remotethermo/homeassistant"
	"github.com/victorjacobs/go-remotethermo/sensor"
)

// AttachHomeAssistant starts mirroring every poll result to Home Assistant
// over MQTT. It returns a function that detaches again.
func (b *Bridge) AttachHomeAssistant(publisher homeassistant.Publisher) func() {
	b.mutex.Lock()
	b.homeAssistant = homeassistant.NewClient(publisher, b.cfg.Mqtt.DiscoveryPrefix, b.cfg.Mqtt.TopicPrefix, b.cfg.ClientID)
	b.registered = make(map[string]string)
	b.mutex.Unlock()

	unsubscribe := b.coordinator.Subscribe(b.PublishStates)

	return func() {
		unsubscribe()

		b.mutex.Lock()
		b.homeAssistant = nil
		b.mutex.Unlock()
	}
}

// RegisterSensors (re-)announces every sensor. Call it after each broker
// (re)connect since discovery configs may have been lost.
func (b *Bridge) RegisterSensors() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.homeAssistant == nil {
		return nil
	}

	b.registered = make(map[string]string)

	for _, s := range b.sensors {
		if err := b.register(s); err != nil {
			return err
		}

		b.logger.Info().Str("param_id", s.ParamID()).Str("name", s.Name()).Msg("Registered sensor")
	}

	return nil
}

func (b *Bridge) register(s *sensor.Sensor) error {
	if err := b.homeAssistant.RegisterSensor(s); err != nil {
		return err
	}

	b.registered[s.UniqueID()] = registration(s)

	return nil
}

func registration(s *sensor.Sensor) string {
	return s.Name() + "\x00" + s.Unit()
}

// PublishStates pushes availability and every sensor's state and
// attributes. Sensors whose name or unit changed since they were announced
// are announced again first.
func (b *Bridge) PublishStates() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.homeAssistant == nil {
		return
	}

	available := b.coordinator.LastUpdateSuccess()
	if err := b.homeAssistant.PublishAvailability(available); err != nil {
		b.logger.Warn().Err(err).Msg("MQTT publishing failed")
		return
	}

	if !available {
		return
	}

	for _, s := range b.sensors {
		if b.registered[s.UniqueID()] != registration(s) {
			if err := b.register(s); err != nil {
				b.logger.Warn().Err(err).Str("param_id", s.ParamID()).Msg("Registering sensor failed")
				continue
			}
		}

		// A param missing from the snapshot clears the retained state
		value, _ := s.NativeValue()
		if err := b.homeAssistant.PublishState(s.UniqueID(), value); err != nil {
			b.logger.Warn().Err(err).Str("param_id", s.ParamID()).Msg("MQTT publishing failed")
			continue
		}

		if err := b.homeAssistant.PublishAttributes(s.UniqueID(), s.Attributes()); err != nil {
			b.logger.Warn().Err(err).Str("param_id", s.ParamID()).Msg("MQTT publishing failed")
		}
	}
}
