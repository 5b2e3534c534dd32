package model

import "time"

// Phase documents of a spec, in workflow order.
const (
	PhaseRequirements = "requirements"
	PhaseDesign       = "design"
	PhaseTasks        = "tasks"
)

// Steering documents.
const (
	SteeringProduct   = "product"
	SteeringTech      = "tech"
	SteeringStructure = "structure"
)

// PhaseStatus reports whether a phase document exists.
type PhaseStatus struct {
	Exists       bool       `json:"exists"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// TaskProgress counts checkbox items in tasks.md.
type TaskProgress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	Pending    int `json:"pending"`
}

// Spec summarises one spec directory.
type Spec struct {
	Name         string                 `json:"name"`
	LastModified *time.Time             `json:"lastModified,omitempty"`
	Phases       map[string]PhaseStatus `json:"phases"`
	Implemented  bool                   `json:"implemented"`
	TaskProgress *TaskProgress          `json:"taskProgress,omitempty"`
}

// Steering summarises the project steering documents.
type Steering struct {
	Exists       bool            `json:"exists"`
	Documents    map[string]bool `json:"documents"`
	LastModified *time.Time      `json:"lastModified,omitempty"`
}
