package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/xpbd/internal/ir"
)

// DecodeScene rebuilds the compiled scene stored with a run.
//
// Unknown fields are rejected so a scene written by a newer engine fails
// loudly instead of replaying with settings silently dropped.
func DecodeScene(run ir.Run) (*ir.Scene, error) {
	if run.SceneJSON == "" {
		return nil, fmt.Errorf("run %s: no scene recorded", run.ID)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(run.SceneJSON)))
	dec.DisallowUnknownFields()

	var scene ir.Scene
	if err := dec.Decode(&scene); err != nil {
		return nil, fmt.Errorf("run %s: decode scene: %w", run.ID, err)
	}

	hash, err := ir.SceneHash(&scene)
	if err != nil {
		return nil, fmt.Errorf("run %s: hash scene: %w", run.ID, err)
	}
	if hash != run.SceneHash {
		return nil, fmt.Errorf("run %s: scene hash %s does not match recorded %s", run.ID, hash, run.SceneHash)
	}
	return &scene, nil
}
