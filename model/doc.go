// Package model contains the persisted representation of approval requests,
// their review comments, the immutable snapshots captured along the approval
// lifecycle and the line diff produced between snapshot versions.
//
// The types carry JSON tags matching the on-disk layout used under
// `<project>/.spec-workflow/approvals`, so that records written by one process
// (for example the CLI used by an automation client) can be read by another
// (for example the dashboard server).
package model
