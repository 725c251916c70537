package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/victorjacobs/go-remotethermo/logger"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFilename            = "remotethermo.json"
	DefaultHomeAssistantPrefix = "homeassistant"
	DefaultTopicPrefix         = "remotethermo"
	DefaultListen              = ":8080"
)

var (
	ErrMissingClientID = errors.New("client_id is required")
	ErrMissingToken    = errors.New("token is required")
)

// Configuration is the persisted config entry. Credentials are fixed once
// created; Options may be edited at runtime.
type Configuration struct {
	ClientID string        `json:"client_id" yaml:"client_id"`
	Token    string        `json:"token" yaml:"token"`
	Options  Options       `json:"options" yaml:"options"`
	Mqtt     Mqtt          `json:"mqtt" yaml:"mqtt"`
	Http     Http          `json:"http" yaml:"http"`
	Log      logger.Config `json:"log" yaml:"log"`
}

type Mqtt struct {
	IpAddress       string `json:"ip_address" yaml:"ip_address"`
	Port            int    `json:"port,omitempty" yaml:"port,omitempty"`
	Username        string `json:"username" yaml:"username"`
	Password        string `json:"password" yaml:"password"`
	DiscoveryPrefix string `json:"discovery_prefix,omitempty" yaml:"discovery_prefix,omitempty"`
	TopicPrefix     string `json:"topic_prefix,omitempty" yaml:"topic_prefix,omitempty"`
}

type Http struct {
	Listen string `json:"listen" yaml:"listen"`
}

// NewEntry creates a configuration from user supplied credentials, seeded
// with the default options.
func NewEntry(clientID string, token string) (*Configuration, error) {
	cfg := &Configuration{
		ClientID: strings.TrimSpace(clientID),
		Token:    strings.TrimSpace(token),
		Options:  DefaultOptions(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	return cfg, nil
}

func (c *Configuration) Validate() error {
	if c.ClientID == "" {
		return ErrMissingClientID
	}

	if c.Token == "" {
		return ErrMissingToken
	}

	return nil
}

// Title is a human readable name for the installation.
func (c *Configuration) Title() string {
	return fmt.Sprintf("NTI RemoteThermo (%v)", c.ClientID)
}

// LoadEnv reads .env style files into the process environment. Missing files
// are ignored.
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	for _, filename := range filenames {
		if err := godotenv.Load(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %v: %w", filename, err)
		}
	}

	return nil
}

// LoadConfiguration reads filename (JSON or YAML, by extension), applies
// environment overrides and normalizes the options. A missing file is only an
// error when the environment doesn't supply credentials either.
func LoadConfiguration(filename string) (*Configuration, error) {
	configuration := &Configuration{}

	if err := readFile(filename, configuration); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	configuration.applyEnv()
	configuration.ClientID = strings.TrimSpace(configuration.ClientID)
	configuration.Token = strings.TrimSpace(configuration.Token)

	if err := configuration.Validate(); err != nil {
		return nil, err
	}

	configuration.setDefaults()

	return configuration, nil
}

func (c *Configuration) setDefaults() {
	c.Options = c.Options.Normalize()

	if c.Mqtt.Port == 0 {
		c.Mqtt.Port = 1883
	}

	if c.Mqtt.DiscoveryPrefix == "" {
		c.Mqtt.DiscoveryPrefix = DefaultHomeAssistantPrefix
	}

	if c.Mqtt.TopicPrefix == "" {
		c.Mqtt.TopicPrefix = DefaultTopicPrefix
	}

	if c.Http.Listen == "" {
		c.Http.Listen = DefaultListen
	}
}

func (c *Configuration) applyEnv() {
	overrides := map[string]*string{
		"NTI_CLIENT_ID": &c.ClientID,
		"NTI_TOKEN":     &c.Token,
		"MQTT_HOST":     &c.Mqtt.IpAddress,
		"MQTT_USERNAME": &c.Mqtt.Username,
		"MQTT_PASSWORD": &c.Mqtt.Password,
		"HTTP_LISTEN":   &c.Http.Listen,
		"LOG_LEVEL":     &c.Log.Level,
	}

	for key, field := range overrides {
		if value := os.Getenv(key); value != "" {
			*field = value
		}
	}

	if value := os.Getenv("MQTT_PORT"); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			c.Mqtt.Port = port
		}
	}
}

func readFile(filename string, out *Configuration) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	if isYAML(filename) {
		err = yaml.Unmarshal(data, out)
	} else {
		err = json.Unmarshal(data, out)
	}

	if err != nil {
		return fmt.Errorf("parsing %v: %w", filename, err)
	}

	return nil
}

func writeFile(filename string, configuration *Configuration) error {
	var data []byte
	var err error

	if isYAML(filename) {
		data, err = yaml.Marshal(configuration)
	} else {
		data, err = json.MarshalIndent(configuration, "", "  ")
	}

	if err != nil {
		return err
	}

	// The file holds the vendor session token. CreateTemp makes it 0600
	// regardless of the mode the old file had.
	f, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), filename)
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))

	return ext == ".yaml" || ext == ".yml"
}

func (m *Mqtt) Enabled() bool {
	return m.IpAddress != ""
}

func (m *Mqtt) AvailabilityTopic() string {
	return m.TopicPrefix + "/availability"
}

func (m *Mqtt) ClientOptions(log zerolog.Logger) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%v:%v", m.IpAddress, m.Port)).
		SetClientID("remotethermo-" + uuid.NewString()[:8]).
		SetUsername(m.Username).
		SetPassword(m.Password).
		SetAutoReconnect(true).
		SetWill(m.AvailabilityTopic(), "offline", 1, true).
		SetConnectionLostHandler(func(client mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
			log.Info().Msg("MQTT reconnecting")
		})
}
