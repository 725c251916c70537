package routes

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/victorjacobs/go-remotethermo/bridge"
	"github.com/victorjacobs/go-remotethermo/config"
)

type optionsResponse struct {
	ParamIDs     []string `json:"param_ids"`
	ScanInterval int      `json:"scan_interval"`
}

type optionsRequest struct {
	ParamIDs     any  `json:"param_ids"`
	ScanInterval *int `json:"scan_interval"`
}

func GetOptions(b *bridge.Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, toResponse(b.Options()))
	}
}

// UpdateOptions accepts param_ids as a comma-separated string or a list.
// Omitted fields keep their current value; an explicit scan_interval below
// the floor is raised to it.
func UpdateOptions(b *bridge.Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req optionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}

		options := b.Options()

		if req.ParamIDs != nil {
			switch req.ParamIDs.(type) {
			case string, []any:
				options.ParamIDs = config.ParseParamIDs(req.ParamIDs)
			default:
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "param_ids must be a string or a list"})
				return
			}
		}

		if req.ScanInterval != nil {
			options.ScanInterval = config.ClampScanInterval(*req.ScanInterval)
		}

		options, err := b.UpdateOptions(r.Context(), options)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, toResponse(options))
	}
}

func toResponse(options config.Options) optionsResponse {
	return optionsResponse{
		ParamIDs:     options.ParamIDs,
		ScanInterval: options.ScanInterval,
	}
}
