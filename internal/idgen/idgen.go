package idgen

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewFunc returns a new approval identifier. It is a variable so tests can stub it.
var NewFunc = func() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return "approval_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + suffix
}

// New returns a new approval identifier.
func New() string { return NewFunc() }

// Valid reports whether id can be used as a single storage path segment.
func Valid(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`+"\x00")
}
