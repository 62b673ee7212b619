// internal/model/projector.go
package model

import (
	"time"

	"projector-service/pkg/driver"
)

// JSONObject is a free-form JSON payload
type JSONObject map[string]interface{}

// ProjectorStatus is the aggregated view of one projector returned by the API
type ProjectorStatus struct {
	Info       driver.ProjectorInfo `json:"info"`
	Power      driver.PowerCode     `json:"power,omitempty"`
	PowerLabel string               `json:"power_label,omitempty"`
	Client     driver.ClientStatus  `json:"client"`
	Snapshot   *PropertySnapshot    `json:"snapshot,omitempty"`
}

// PropertySnapshot holds the last values read by the property poller
type PropertySnapshot struct {
	Properties map[string]int    `json:"properties"`
	Options    map[string]string `json:"options"`
	Functions  map[string]string `json:"functions"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewPropertySnapshot creates an empty snapshot
func NewPropertySnapshot() *PropertySnapshot {
	return &PropertySnapshot{
		Properties: make(map[string]int),
		Options:    make(map[string]string),
		Functions:  make(map[string]string),
	}
}

// Clone returns a deep copy safe to hand to callers
func (s *PropertySnapshot) Clone() *PropertySnapshot {
	if s == nil {
		return nil
	}
	clone := NewPropertySnapshot()
	for k, v := range s.Properties {
		clone.Properties[k] = v
	}
	for k, v := range s.Options {
		clone.Options[k] = v
	}
	for k, v := range s.Functions {
		clone.Functions[k] = v
	}
	clone.UpdatedAt = s.UpdatedAt
	return clone
}
