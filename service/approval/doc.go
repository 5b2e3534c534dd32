// Package approval implements the human-in-the-loop approval store: requests
// are created by an automation client, decided by a reviewer, and removed
// once approved. Every mutation captures a snapshot of the reviewed artifact
// and publishes a change notification for the realtime hub.
package approval
