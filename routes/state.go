package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/victorjacobs/go-remotethermo/bridge"
)

type sensorState struct {
	UniqueID   string         `json:"unique_id"`
	Name       string         `json:"name"`
	Value      any            `json:"value"`
	Unit       string         `json:"unit,omitempty"`
	StateClass string         `json:"state_class"`
	Attributes map[string]any `json:"attributes"`
}

type stateResponse struct {
	Available     bool                   `json:"available"`
	LastRefreshed *time.Time             `json:"last_refreshed,omitempty"`
	LastError     string                 `json:"last_error,omitempty"`
	ParamIDs      []string               `json:"param_ids"`
	Sensors       map[string]sensorState `json:"sensors"`
	Data          any                    `json:"data"`
}

func State(b *bridge.Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		c := b.Coordinator()

		resp := stateResponse{
			Available: c.LastUpdateSuccess(),
			ParamIDs:  c.ParamIDs(),
			Sensors:   make(map[string]sensorState),
			Data:      c.Data(),
		}

		if lastRefreshed := c.LastRefreshed(); !lastRefreshed.IsZero() {
			resp.LastRefreshed = &lastRefreshed
		}

		if err := c.LastError(); err != nil {
			resp.LastError = err.Error()
		}

		for _, s := range b.Sensors() {
			value, _ := s.NativeValue()
			resp.Sensors[s.ParamID()] = sensorState{
				UniqueID:   s.UniqueID(),
				Name:       s.Name(),
				Value:      value,
				Unit:       s.Unit(),
				StateClass: s.StateClass(),
				Attributes: s.Attributes(),
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func Refresh(b *bridge.Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := b.Refresh(r.Context()); err != nil {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	marshaled, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("error marshaling")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(marshaled)
}
