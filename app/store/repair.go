package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/go-pkgz/lgr"
)

// repair is the one-shot reconciliation scan: walks the whole store tree,
// decodes every status file and moves misplaced ones to the canonical
// location of the identifier embedded in the status. Runs before the store
// serves any request and never again. Per-file failures are logged and
// skipped, one corrupt file must not hide the rest.
func (s *Store) repair() error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return nil
	}

	// explicit worklist instead of recursion, tree depth is caller-controlled
	var found []string // directories holding a status file
	stack := []string{s.root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Printf("[WARN] reconciliation can't read folder %s, %v", dir, err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				stack = append(stack, filepath.Join(dir, entry.Name()))
				continue
			}
			if entry.Name() == StatusFileName {
				found = append(found, dir)
			}
		}
	}

	// deepest first, so a status relocates before any ancestor folder move
	// can drag it along
	sort.Slice(found, func(i, j int) bool {
		return strings.Count(found[i], string(filepath.Separator)) > strings.Count(found[j], string(filepath.Separator))
	})

	moved := 0
	for _, dir := range found {
		if s.repairFolder(dir) {
			moved++
		}
	}
	if moved > 0 {
		log.Printf("[INFO] reconciliation moved %d misplaced status file(s)", moved)
	}
	return nil
}

// repairFolder relocates the folder's status file to its canonical location
// if needed. Reports whether a move happened.
func (s *Store) repairFolder(dir string) bool {
	path := filepath.Join(dir, StatusFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false // already moved along with an ancestor folder
	}

	st, err := s.loadFile(path)
	if err != nil || st == nil {
		log.Printf("[WARN] reconciliation failed to load status in folder %s, %v", dir, err)
		return false
	}

	canonical := s.jobDir(st.RequestID())
	if filepath.Clean(dir) == filepath.Clean(canonical) {
		return false
	}

	if err := relocate(dir, canonical); err != nil {
		log.Printf("[WARN] reconciliation failed to move status from %s to %s, %v", dir, canonical, err)
		return false
	}
	log.Printf("[INFO] moved misplaced status for id [%s] from %s to %s", st.RequestID(), dir, canonical)
	s.record("repair", st.RequestID().Key(), dir)
	return true
}

// relocate moves the whole folder to the canonical location. When the
// canonical folder already exists, or is nested inside the misplaced one,
// only the status file moves.
func relocate(dir, canonical string) error {
	sep := string(filepath.Separator)
	nested := strings.HasPrefix(canonical+sep, dir+sep)

	if _, err := os.Stat(canonical); err == nil || nested {
		if err := os.MkdirAll(canonical, 0o700); err != nil {
			return err
		}
		return os.Rename(filepath.Join(dir, StatusFileName), filepath.Join(canonical, StatusFileName))
	}

	if err := os.MkdirAll(filepath.Dir(canonical), 0o700); err != nil {
		return err
	}
	return os.Rename(dir, canonical)
}
