package store

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/go-pkgz/lgr"
)

// StatusFileName is the fixed name of the status file in each job folder.
const StatusFileName = "status.json"

// jobDir returns the canonical folder for the id, one nested directory per
// encoded segment under the store root. An empty id maps to the root itself.
func (s *Store) jobDir(id ID) string {
	elems := make([]string, 0, len(id)+1)
	elems = append(elems, s.root)
	for _, seg := range id {
		elems = append(elems, seg.encode())
	}
	return filepath.Join(elems...)
}

func (s *Store) statusPath(id ID) string {
	return filepath.Join(s.jobDir(id), StatusFileName)
}

// load reads the status for the id from its canonical location. Returns nil
// without error when no status file exists.
func (s *Store) load(id ID) (Status, error) {
	return s.loadFile(s.statusPath(id))
}

func (s *Store) loadFile(path string) (Status, error) {
	fh, err := os.Open(path) //nolint:gosec // path derives from the encoded id under the store root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't open status file %s: %w", path, err)
	}
	defer func() {
		if e := fh.Close(); e != nil {
			log.Printf("[WARN] failed to close %s, %v", path, e)
		}
	}()

	st, err := s.serializer.Read(fh)
	if err != nil {
		return nil, fmt.Errorf("can't decode status file %s: %w", path, err)
	}
	return st, nil
}

// write stores the status at its canonical location, creating parent
// directories on demand and overwriting any previous file.
func (s *Store) write(st Status) error {
	dir := s.jobDir(st.RequestID())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("can't make job folder %s: %w", dir, err)
	}

	path := filepath.Join(dir, StatusFileName)
	fh, err := os.Create(path) //nolint:gosec // path derives from the encoded id under the store root
	if err != nil {
		return fmt.Errorf("can't create status file %s: %w", path, err)
	}
	if err := s.serializer.Write(fh, st); err != nil {
		_ = fh.Close()
		return fmt.Errorf("can't encode status to %s: %w", path, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("can't close status file %s: %w", path, err)
	}
	return nil
}

// delete removes the id's entire subtree. Reports whether anything existed.
func (s *Store) delete(id ID) (existed bool, err error) {
	dir := s.jobDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return true, fmt.Errorf("can't delete job folder %s: %w", dir, err)
	}
	return true, nil
}
