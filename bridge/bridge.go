package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/victorjacobs/go-remotethermo/config"
	"github.com/victorjacobs/go-remotethermo/coordinator"
	"github.com/victorjacobs/go-remotethermo/homeassistant"
	"github.com/victorjacobs/go-remotethermo/remotethermo"
	"github.com/victorjacobs/go-remotethermo/sensor"
)

type Bridge struct {
	cfg         *config.Configuration
	store       *config.Store
	coordinator *coordinator.Coordinator
	logger      zerolog.Logger

	mutex         sync.Mutex
	sensors       []*sensor.Sensor
	homeAssistant *homeassistant.Client
	// registered tracks the name and unit each sensor was last announced with.
	registered map[string]string
}

// Setup builds the fetch client and coordinator and performs the first poll.
// Setup fails when that poll fails.
func Setup(ctx context.Context, cfg *config.Configuration, store *config.Store, logger zerolog.Logger, opts ...remotethermo.Option) (*Bridge, error) {
	logger.Info().Str("client_id", cfg.ClientID).Strs("param_ids", cfg.Options.ParamIDs).Msg("Setting up")

	client := remotethermo.NewClient(
		cfg.ClientID,
		cfg.Token,
		append([]remotethermo.Option{remotethermo.WithLogger(logger.With().Str("component", "api").Logger())}, opts...)...,
	)

	c := coordinator.New(
		client,
		cfg.Options.ParamIDs,
		cfg.Options.Interval(),
		logger.With().Str("component", "coordinator").Logger(),
	)

	if err := c.FirstRefresh(ctx); err != nil {
		return nil, fmt.Errorf("setting up %v: %w", cfg.Title(), err)
	}

	b := &Bridge{
		cfg:         cfg,
		store:       store,
		coordinator: c,
		logger:      logger,
		sensors:     sensor.FromParamIDs(cfg.ClientID, cfg.Options.ParamIDs, c),
		registered:  make(map[string]string),
	}

	logger.Info().Int("items", len(c.Data())).Msg("Connected to NTI RemoteThermo")

	return b, nil
}

func (b *Bridge) Coordinator() *coordinator.Coordinator {
	return b.coordinator
}

func (b *Bridge) Sensors() []*sensor.Sensor {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return append([]*sensor.Sensor(nil), b.sensors...)
}

func (b *Bridge) Options() config.Options {
	return b.store.Options()
}

// Run polls until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	b.coordinator.Run(ctx)
}

func (b *Bridge) Refresh(ctx context.Context) error {
	return b.coordinator.Refresh(ctx)
}

// UpdateOptions persists new options, points the coordinator at them and
// polls immediately. A failing poll is not an error here; it shows up as the
// coordinator's last error like any scheduled poll.
func (b *Bridge) UpdateOptions(ctx context.Context, options config.Options) (config.Options, error) {
	options, err := b.store.UpdateOptions(options)
	if err != nil {
		return options, fmt.Errorf("saving options: %w", err)
	}

	b.logger.Info().Strs("param_ids", options.ParamIDs).Int("scan_interval", options.ScanInterval).Msg("Options updated")

	b.syncSensors(options.ParamIDs)

	if err := b.coordinator.Reconfigure(ctx, options.ParamIDs, options.Interval()); err != nil {
		b.logger.Warn().Err(err).Msg("Refresh after options update failed")
	}

	return options, nil
}

// syncSensors adds sensors for new param IDs and drops the ones no longer
// tracked, announcing the removal when Home Assistant is attached.
func (b *Bridge) syncSensors(paramIDs []string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	existing := make(map[string]*sensor.Sensor, len(b.sensors))
	for _, s := range b.sensors {
		existing[s.ParamID()] = s
	}

	sensors := make([]*sensor.Sensor, 0, len(paramIDs))
	for _, paramID := range paramIDs {
		if s, ok := existing[paramID]; ok {
			sensors = append(sensors, s)
			delete(existing, paramID)
			continue
		}

		sensors = append(sensors, sensor.New(b.cfg.ClientID, paramID, b.coordinator))
	}

	for _, removed := range existing {
		delete(b.registered, removed.UniqueID())

		if b.homeAssistant == nil {
			continue
		}

		if err := b.homeAssistant.UnregisterSensor(removed.UniqueID()); err != nil {
			b.logger.Warn().Err(err).Str("param_id", removed.ParamID()).Msg("Unregistering sensor failed")
		}
	}

	b.sensors = sensors
}
