package model

import "time"

// Trigger records why a snapshot was captured.
type Trigger string

const (
	TriggerInitial           Trigger = "initial"
	TriggerRevisionRequested Trigger = "revision_requested"
	TriggerApproved          Trigger = "approved"
	TriggerManual            Trigger = "manual"
)

// FileStats describes snapshot content.
type FileStats struct {
	Size         int64     `json:"size"`
	Lines        int       `json:"lines"`
	LastModified time.Time `json:"lastModified"`
}

// Snapshot is an immutable, versioned copy of reviewed content together with
// the approval state at capture time.
type Snapshot struct {
	ID            string    `json:"id"`
	ApprovalID    string    `json:"approvalId"`
	ApprovalTitle string    `json:"approvalTitle"`
	Version       int       `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	Trigger       Trigger   `json:"trigger"`
	Status        Status    `json:"status"`
	Content       string    `json:"content"`
	FileStats     FileStats `json:"fileStats"`
	Comments      []Comment `json:"comments,omitempty"`
	Annotations   string    `json:"annotations,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	ret := *s
	ret.Comments = CloneComments(s.Comments)
	return &ret
}

// SnapshotMetadata tracks the version counter of one approval's history.
// NextVersion only grows so versions are never reused.
type SnapshotMetadata struct {
	ApprovalID  string    `json:"approvalId"`
	NextVersion int       `json:"nextVersion"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
