package coordinator

import (
	"errors"
	"fmt"
)

// Param is one record of the Refresh payload, kept exactly as the vendor sent
// it (id, label, value, unitLabel, fullIdentifier, readOnly, decimals, min,
// max, anyError).
type Param map[string]any

// Snapshot maps param ID to record. A published snapshot is replaced
// wholesale, never edited.
type Snapshot map[string]Param

var (
	errNotOK           = errors.New("unexpected response: ok != true")
	errDataNotSequence = errors.New("unexpected response: data not a sequence")
)

// ID is the snapshot key of the record. Vendor IDs are usually strings;
// null and booleans are spelled the way the vendor's own tooling prints them.
func (p Param) ID() string {
	switch id := p["id"].(type) {
	case nil:
		return "None"
	case bool:
		if id {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(id)
	}
}

func normalize(payload any) (Snapshot, error) {
	top, ok := payload.(map[string]any)
	if !ok || top["ok"] != true {
		return nil, &UpdateFailedError{Reason: errNotOK.Error(), Err: errNotOK}
	}

	data, ok := top["data"].([]any)
	if !ok {
		return nil, &UpdateFailedError{Reason: errDataNotSequence.Error(), Err: errDataNotSequence}
	}

	snapshot := make(Snapshot, len(data))
	for _, item := range data {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}

		// Records without an id can't be addressed by any sensor.
		if _, ok := record["id"]; !ok {
			continue
		}

		param := Param(record)
		snapshot[param.ID()] = param
	}

	return snapshot, nil
}
