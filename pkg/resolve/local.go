package resolve

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
	"github.com/licensebundle/licensebundle/pkg/license"
)

// DefaultFilePattern matches the file names conventionally used for
// license material. It is case-insensitive and matches anywhere in the
// name, so LICENSE-MIT.txt and Copying.md both qualify.
const DefaultFilePattern = `(?i)(license|copying|notice|authors|eula)`

// fileSeparator joins multiple license files found in one checkout.
const fileSeparator = "\n\n" + "--------------------" + "\n\n"

// LocalDisk resolves licenses from an already-downloaded checkout,
// scanning its top level and one subdirectory level for files whose
// names match the pattern.
type LocalDisk struct {
	pattern *regexp.Regexp
}

// NewLocalDisk compiles the file-name pattern; an empty pattern falls
// back to [DefaultFilePattern].
func NewLocalDisk(pattern string) (*LocalDisk, error) {
	if pattern == "" {
		pattern = DefaultFilePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeInvalidInput, err, "invalid license file pattern %q", pattern)
	}
	return &LocalDisk{pattern: re}, nil
}

func (l *LocalDisk) Name() string { return license.ProvenanceLocalDisk.String() }

// Attempt scans the request's checkout directory. A request without a
// directory, or a directory with no matching files, yields (nil, nil).
func (l *LocalDisk) Attempt(ctx context.Context, req Request) (*Resolution, error) {
	if req.Dir == "" {
		return nil, nil
	}
	text, err := scanTree(req.Dir, l.pattern)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return &Resolution{Provenance: license.ProvenanceLocalDisk, Text: text}, nil
}

// scanTree collects files matching re from dir and its immediate
// subdirectories, reads them in lexical path order, and concatenates
// their contents. Deeper nesting is ignored; license files live at or
// near the checkout root in practice.
func scanTree(dir string, re *regexp.Regexp) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", lberrors.Wrap(lberrors.ErrCodeSourceFailed, err, "scan %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			subEntries, err := os.ReadDir(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			for _, se := range subEntries {
				if !se.IsDir() && re.MatchString(se.Name()) {
					paths = append(paths, filepath.Join(e.Name(), se.Name()))
				}
			}
			continue
		}
		if re.MatchString(e.Name()) {
			paths = append(paths, e.Name())
		}
	}
	sort.Strings(paths)

	var parts []string
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(dir, p))
		if err != nil {
			return "", lberrors.Wrap(lberrors.ErrCodeSourceFailed, err, "read %s", p)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, fileSeparator), nil
}
