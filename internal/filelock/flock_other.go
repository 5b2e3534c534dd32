//go:build !unix

package filelock

import (
	"errors"
	"fmt"
	"os"
)

// acquire creates path exclusively; the file exists only while held.
func acquire(path string) (release func(), ok bool, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open lock file: %w", err)
	}
	return func() {
		_ = f.Close()
		_ = os.Remove(path)
	}, true, nil
}
