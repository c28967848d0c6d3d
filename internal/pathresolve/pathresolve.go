// Package pathresolve turns a book's nominal, case-folded file and
// directory names ("catalog", "honmon.ebz") into whatever a real
// directory entry on disk actually spells them as. CD-ROM filesystems
// mounted read-only on Unix routinely surface ISO-9660 names
// uppercased and version-suffixed ("CATALOG;1"), so every name the
// core looks up has to be resolved this way rather than opened
// directly.
package pathresolve

import (
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when no directory entry matches name under
// any of the trial suffixes.
var ErrNotFound = fmt.Errorf("pathresolve: no matching entry")

// Dir resolves directoryName to the real subdirectory name of dir,
// matching case-insensitively — the same strings.EqualFold approach a
// FAT driver uses for 8.3 names, applied here to ISO-9660 entries.
func Dir(dir, directoryName string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("pathresolve: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.EqualFold(e.Name(), directoryName) {
			return e.Name(), nil
		}
	}
	return "", fmt.Errorf("%w: directory %q under %s", ErrNotFound, directoryName, dir)
}

// File resolves fileName to the real entry name of dir, trying the
// name as given, then with a ";1" ISO-9660 version suffix, then — if
// fileName has no extension — with a trailing "." and ".;1", all
// case-insensitively. This mirrors the four-way fallback a real ISO-
// 9660 mount forces on every ISO Level 1 file name.
func File(dir, fileName string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("pathresolve: read %s: %w", dir, err)
	}

	hasDot := strings.Contains(fileName, ".")
	trials := []string{fileName, fileName + ";1"}
	if !hasDot {
		trials = append(trials, fileName+".", fileName+".;1")
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, trial := range trials {
			if strings.EqualFold(e.Name(), trial) {
				return e.Name(), nil
			}
		}
	}
	return "", fmt.Errorf("%w: file %q under %s", ErrNotFound, fileName, dir)
}

// FindHint resolves the first name in hints (tried in order) that
// exists in dir, returning the resolved real name and the index of
// the hint that matched. This is the hint-list lookup behind catalog
// discovery and stream-file discovery alike: both try a short list of
// candidate base names and take the first one present.
func FindHint(dir string, hints []string) (resolved string, hintIndex int, err error) {
	for i, hint := range hints {
		resolved, err = File(dir, hint)
		if err == nil {
			return resolved, i, nil
		}
	}
	return "", -1, fmt.Errorf("%w: none of %v under %s", ErrNotFound, hints, dir)
}
