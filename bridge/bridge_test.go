package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victorjacobs/go-remotethermo/config"
	"github.com/victorjacobs/go-remotethermo/remotethermo"
)

// vendor is a fake Refresh endpoint that answers with a record for every
// requested param ID not in dropped.
type vendor struct {
	mutex    sync.Mutex
	status   int
	dropped  map[string]bool
	requests []string
}

func (v *vendor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.mutex.Lock()
	status := v.status
	dropped := v.dropped
	v.requests = append(v.requests, r.URL.Query().Get("paramIds"))
	v.mutex.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	var data []map[string]any
	for i, id := range config.ParseParamIDs(r.URL.Query().Get("paramIds")) {
		if dropped[id] {
			continue
		}
		data = append(data, map[string]any{"id": id, "value": 20 + i, "unitLabel": "°C", "label": "Label " + id})
	}

	json.NewEncoder(w).Encode(map[string]any{"ok": true, "data": data})
}

func (v *vendor) setStatus(status int) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.status = status
}

func (v *vendor) drop(ids ...string) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.dropped = make(map[string]bool)
	for _, id := range ids {
		v.dropped[id] = true
	}
}

func (v *vendor) lastRequest() string {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	return v.requests[len(v.requests)-1]
}

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Error() error                   { return nil }

func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakePublisher struct {
	mutex    sync.Mutex
	messages map[string]string
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.messages == nil {
		f.messages = make(map[string]string)
	}

	switch p := payload.(type) {
	case []byte:
		f.messages[topic] = string(p)
	default:
		f.messages[topic] = fmt.Sprint(p)
	}

	return fakeToken{}
}

func (f *fakePublisher) get(topic string) (string, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	payload, ok := f.messages[topic]
	return payload, ok
}

func setup(t *testing.T, v *vendor, paramIDs ...string) *Bridge {
	t.Helper()

	server := httptest.NewServer(v)
	t.Cleanup(server.Close)

	cfg, err := config.NewEntry("12345", "token")
	require.NoError(t, err)
	cfg.Options.ParamIDs = paramIDs

	store := config.NewStore(filepath.Join(t.TempDir(), "remotethermo.json"), cfg)

	b, err := Setup(context.Background(), cfg, store, zerolog.Nop(), remotethermo.WithBaseURL(server.URL))
	require.NoError(t, err)

	return b
}

func TestSetupPerformsFirstRefresh(t *testing.T) {
	b := setup(t, &vendor{}, "A", "B")

	require.Len(t, b.Sensors(), 2)
	value, ok := b.Sensors()[1].NativeValue()
	require.True(t, ok)
	assert.Equal(t, json.Number("21"), value)
	assert.Equal(t, "Label B", b.Sensors()[1].Name())
}

func TestSetupFailsWhenFirstRefreshFails(t *testing.T) {
	server := httptest.NewServer(&vendor{status: http.StatusForbidden})
	defer server.Close()

	cfg, err := config.NewEntry("12345", "token")
	require.NoError(t, err)
	store := config.NewStore(filepath.Join(t.TempDir(), "remotethermo.json"), cfg)

	_, err = Setup(context.Background(), cfg, store, zerolog.Nop(), remotethermo.WithBaseURL(server.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, remotethermo.ErrAuth)
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestUpdateOptionsAppliesImmediately(t *testing.T) {
	v := &vendor{}
	b := setup(t, v, "A")

	options, err := b.UpdateOptions(context.Background(), config.Options{ParamIDs: config.ParamIDs{"B", "C"}, ScanInterval: 1})
	require.NoError(t, err)

	assert.Equal(t, config.MinScanInterval, options.ScanInterval)
	assert.Equal(t, "B,C", v.lastRequest())
	assert.Equal(t, 5*time.Second, b.Coordinator().Interval())
	assert.Equal(t, []string{"B", "C"}, b.Coordinator().ParamIDs())
	assert.Equal(t, options, b.Options())

	sensors := b.Sensors()
	require.Len(t, sensors, 2)
	assert.Equal(t, "B", sensors[0].ParamID())

	_, ok := sensors[1].NativeValue()
	assert.True(t, ok)
}

func TestPublishStates(t *testing.T) {
	v := &vendor{}
	b := setup(t, v, "A")
	publisher := &fakePublisher{}
	detach := b.AttachHomeAssistant(publisher)
	defer detach()

	require.NoError(t, b.RegisterSensors())

	discovery, ok := publisher.get("homeassistant/sensor/nti_remotethermo_12345_A/config")
	require.True(t, ok)
	assert.Contains(t, discovery, `"name":"Label A"`)

	require.NoError(t, b.Refresh(context.Background()))

	state, _ := publisher.get("remotethermo/nti_remotethermo_12345_A/state")
	assert.Equal(t, "20", state)

	availability, _ := publisher.get("remotethermo/availability")
	assert.Equal(t, "online", availability)

	attributes, _ := publisher.get("remotethermo/nti_remotethermo_12345_A/attributes")
	assert.Contains(t, attributes, `"param_id":"A"`)

	v.setStatus(http.StatusInternalServerError)
	require.Error(t, b.Refresh(context.Background()))

	availability, _ = publisher.get("remotethermo/availability")
	assert.Equal(t, "offline", availability)
	state, _ = publisher.get("remotethermo/nti_remotethermo_12345_A/state")
	assert.Equal(t, "20", state)
}

func TestUpdateOptionsUnregistersDroppedSensors(t *testing.T) {
	b := setup(t, &vendor{}, "A", "B")
	publisher := &fakePublisher{}
	defer b.AttachHomeAssistant(publisher)()

	require.NoError(t, b.RegisterSensors())

	_, err := b.UpdateOptions(context.Background(), config.Options{ParamIDs: config.ParamIDs{"B", "C"}})
	require.NoError(t, err)

	removed, ok := publisher.get("homeassistant/sensor/nti_remotethermo_12345_A/config")
	require.True(t, ok)
	assert.Empty(t, removed)

	added, ok := publisher.get("homeassistant/sensor/nti_remotethermo_12345_C/config")
	require.True(t, ok)
	assert.Contains(t, added, `"name":"Label C"`)
}

func TestPublishStatesClearsDroppedParam(t *testing.T) {
	v := &vendor{}
	b := setup(t, v, "A", "B")
	publisher := &fakePublisher{}
	defer b.AttachHomeAssistant(publisher)()

	require.NoError(t, b.RegisterSensors())
	require.NoError(t, b.Refresh(context.Background()))

	state, _ := publisher.get("remotethermo/nti_remotethermo_12345_A/state")
	assert.Equal(t, "20", state)

	v.drop("A")
	require.NoError(t, b.Refresh(context.Background()))

	state, ok := publisher.get("remotethermo/nti_remotethermo_12345_A/state")
	require.True(t, ok)
	assert.Equal(t, "None", state)

	attributes, _ := publisher.get("remotethermo/nti_remotethermo_12345_A/attributes")
	assert.JSONEq(t, `{}`, attributes)

	state, _ = publisher.get("remotethermo/nti_remotethermo_12345_B/state")
	assert.Equal(t, "21", state)
}
