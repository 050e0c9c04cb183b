package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	derrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// writer writes outputs and skips those whose fingerprint did not change
// since the last write.
type writer struct {
	mu           sync.Mutex
	fingerprints map[string]string
}

func newWriter() *writer {
	return &writer{fingerprints: make(map[string]string)}
}

// write stores content at path unless the same fingerprint was written there
// before and the file still exists. Writes to one path are serialized through
// the session's named locks.
func (w *writer) write(ctx context.Context, sess *Session, path, content, fingerprint string) (bool, error) {
	release, err := sess.Locks.Acquire(ctx, path)
	if err != nil {
		return false, err
	}
	defer release()

	w.mu.Lock()
	prev, seen := w.fingerprints[path]
	w.mu.Unlock()
	if seen && prev == fingerprint && fileExists(path) {
		return false, nil
	}

	if err := writeFileAtomic(sess, path, []byte(content)); err != nil {
		return false, err
	}
	w.mu.Lock()
	w.fingerprints[path] = fingerprint
	w.mu.Unlock()
	return true, nil
}

func (w *writer) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.fingerprints, path)
}

// writeFileAtomic writes through a temp file in the target directory. The temp
// file is tracked by the session until the rename succeeds.
func writeFileAtomic(sess *Session, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", dir).
			Build()
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create temp file").
			WithContext("path", path).
			Build()
	}
	tmp := f.Name()
	sess.trackTemp(tmp)

	_, werr := f.Write(data)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmp, path)
	}
	if werr != nil {
		return derrors.WrapError(werr, derrors.CategoryFileSystem, "failed to write output").
			WithContext("path", path).
			Build()
	}
	sess.untrackTemp(tmp)
	return nil
}
