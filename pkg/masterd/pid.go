package masterd

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
)

// pidFile writes the daemon pid and holds an advisory lock for the life of
// the process so a second instance pointed at the same file refuses to
// start.
type pidFile struct {
	path string
	lock *flock.Flock
}

func writePIDFile(path string) (*pidFile, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock pid file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("pid file %s is locked by another instance", path)
	}
	if err := renameio.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &pidFile{path: path, lock: lock}, nil
}

// Remove deletes the pid file and releases the lock. Failures are ignored;
// a stale pid file is harmless since the lock is what enforces exclusivity.
func (p *pidFile) Remove() {
	if p == nil {
		return
	}
	os.Remove(p.path)
	p.lock.Unlock()
	os.Remove(p.lock.Path())
}
