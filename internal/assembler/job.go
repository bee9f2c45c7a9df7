package assembler

import (
	"fmt"

	"github.com/google/uuid"
)

// Job is the unit of work handed to the planner and turn orchestrators.
// Payload is the raw job payload; the orchestrators validate the fields
// they need and reject deprecated ones.
type Job struct {
	ID           uuid.UUID
	JobType      string
	AttemptCount int
	Payload      map[string]any
}

// payloadString reads a string field from the payload. Missing keys and
// non-string values both report absent.
func payloadString(payload map[string]any, key string) (string, bool) {
	if payload == nil {
		return "", false
	}
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// payloadUUID reads and parses a uuid field from the payload.
func payloadUUID(payload map[string]any, key string) (uuid.UUID, bool) {
	s, ok := payloadString(payload, key)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// requireModelIdentity enforces the shared planner/turn preconditions
// on the job payload: no deprecated step_info, and both model_id and
// model_slug present.
func requireModelIdentity(payload map[string]any) (uuid.UUID, string, error) {
	if payload == nil {
		return uuid.Nil, "", fmt.Errorf("PRECONDITION_FAILED: Job payload is missing 'model_id'.")
	}
	if _, ok := payload["step_info"]; ok {
		return uuid.Nil, "", fmt.Errorf("PRECONDITION_FAILED: Legacy 'step_info' object found in job payload. This field is deprecated.")
	}
	modelID, ok := payloadUUID(payload, "model_id")
	if !ok {
		return uuid.Nil, "", fmt.Errorf("PRECONDITION_FAILED: Job payload is missing 'model_id'.")
	}
	modelSlug, ok := payloadString(payload, "model_slug")
	if !ok {
		return uuid.Nil, "", fmt.Errorf("PRECONDITION_FAILED: Job payload is missing 'model_slug'.")
	}
	return modelID, modelSlug, nil
}
