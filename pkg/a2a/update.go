package a2a

import (
	"encoding/json"
	"fmt"
)

/*
Update is what a task handler emits: either a StatusUpdate or an
ArtifactUpdate. The unexported marker keeps the set closed.
*/
type Update interface {
	isUpdate()
}

/*
StatusUpdate moves the task to State. Message may be nil.
*/
type StatusUpdate struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
}

func (StatusUpdate) isUpdate() {}

/*
ArtifactUpdate adds, replaces or extends one artifact of the task.
*/
type ArtifactUpdate struct {
	Artifact
}

func (ArtifactUpdate) isUpdate() {}

/*
IsStatusUpdate reports whether a decoded JSON object has the shape of a status
update: a state field and no parts field.
*/
func IsStatusUpdate(value map[string]any) bool {
	if value == nil {
		return false
	}

	_, hasState := value["state"]
	_, hasParts := value["parts"]

	return hasState && !hasParts
}

/*
IsArtifactUpdate reports whether a decoded JSON object has the shape of an
artifact update: a parts field.
*/
func IsArtifactUpdate(value map[string]any) bool {
	if value == nil {
		return false
	}

	_, hasParts := value["parts"]

	return hasParts
}

/*
ParseUpdate classifies raw JSON by shape and decodes it into the matching
Update. Payloads that are neither shape, or carry an undefined state, are
rejected.
*/
func ParseUpdate(raw []byte) (Update, error) {
	var shape map[string]any

	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("update is not a JSON object: %w", err)
	}

	switch {
	case IsArtifactUpdate(shape):
		var update ArtifactUpdate

		if err := json.Unmarshal(raw, &update.Artifact); err != nil {
			return nil, fmt.Errorf("malformed artifact update: %w", err)
		}

		return update, nil
	case IsStatusUpdate(shape):
		var update StatusUpdate

		if err := json.Unmarshal(raw, &update); err != nil {
			return nil, fmt.Errorf("malformed status update: %w", err)
		}

		if !update.State.IsValid() {
			return nil, fmt.Errorf("status update has unknown state %q", update.State)
		}

		return update, nil
	}

	return nil, fmt.Errorf("update is neither a status nor an artifact update")
}

/*
ParseEvent decodes a streamed task event, telling the two kinds apart by
whether they carry an artifact or a status.
*/
func ParseEvent(raw []byte) (Event, error) {
	var shape map[string]json.RawMessage

	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("event is not a JSON object: %w", err)
	}

	if _, ok := shape["artifact"]; ok {
		var event TaskArtifactUpdateEvent

		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("malformed artifact event: %w", err)
		}

		return event, nil
	}

	if _, ok := shape["status"]; ok {
		var event TaskStatusUpdateEvent

		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("malformed status event: %w", err)
		}

		return event, nil
	}

	return nil, fmt.Errorf("event is neither a status nor an artifact event")
}
