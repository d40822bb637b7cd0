// Package filelist evaluates the backup-list text file (§4.3) into a
// concrete set of local files to back up.
//
// Grammar:
//
//	rule      := path newline (filter newline)*
//	filter    := '-' regex      (leading '-' stripped, remainder trimmed)
//	path      := a path line; if the path is a regular file, no filters
//	             apply; if a directory, subsequent filter lines apply to it.
//
// A directory rule recursively walks its root; a file encountered during
// that walk is included unless some filter in the rule matches anywhere in
// the file's path relative to the rule's root. A bare file rule is always
// included.
package filelist

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Entry is one file selected for backup.
type Entry struct {
	// Path is the absolute, forward-slash-separated local path.
	Path string
	// ModTime is the file's modification time, milliseconds since epoch.
	ModTime int64
	// Size is the plaintext file size in bytes.
	Size int64
}

// Evaluate parses listPath and walks every rule, returning the resulting set
// of files. The return order is unspecified (§4.3): callers treat it as a
// set.
func Evaluate(listPath string) ([]Entry, error) {
	rules, err := parseRules(listPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var entries []Entry

	for _, rule := range rules {
		if rule.isFile {
			e, err := statEntry(rule.root)
			if err != nil {
				return nil, fmt.Errorf("filelist: %s: %w", rule.root, err)
			}
			if _, ok := seen[e.Path]; !ok {
				seen[e.Path] = struct{}{}
				entries = append(entries, e)
			}
			continue
		}

		filters := make([]*regexp.Regexp, 0, len(rule.filters))
		for _, pattern := range rule.filters {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("filelist: invalid regex %q: %w", pattern, err)
			}
			filters = append(filters, re)
		}

		root := rule.root
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			for _, re := range filters {
				if re.MatchString(rel) {
					return nil
				}
			}
			e, err := statEntry(path)
			if err != nil {
				return nil
			}
			if _, ok := seen[e.Path]; !ok {
				seen[e.Path] = struct{}{}
				entries = append(entries, e)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("filelist: walk %s: %w", root, err)
		}
	}

	return entries, nil
}

func statEntry(path string) (Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Path:    filepath.ToSlash(abs),
		ModTime: info.ModTime().UnixMilli(),
		Size:    info.Size(),
	}, nil
}

type rule struct {
	root    string
	isFile  bool
	filters []string
}

// parseRules reads the backup-list grammar into a rule sequence, applying
// each filter line to the directory rule that precedes it.
func parseRules(listPath string) ([]rule, error) {
	f, err := os.Open(listPath) // #nosec G304 - operator-supplied backup-list path
	if err != nil {
		return nil, fmt.Errorf("filelist: open %s: %w", listPath, err)
	}
	defer f.Close()

	var rules []rule
	var current *rule

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") {
			if first {
				return nil, fmt.Errorf("filelist: backup list started with a filter, not a path")
			}
			if current == nil {
				return nil, fmt.Errorf("filelist: filter %q has no preceding directory rule", line)
			}
			current.filters = append(current.filters, strings.TrimSpace(line[1:]))
			continue
		}

		first = false
		info, err := os.Stat(line)
		r := rule{root: line}
		if err == nil && !info.IsDir() {
			r.isFile = true
		} else if err != nil {
			// Deferred: validated paths are checked by Validate; Evaluate
			// surfaces the stat error when it actually walks the rule.
			r.isFile = false
		}
		rules = append(rules, r)
		current = &rules[len(rules)-1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("filelist: read %s: %w", listPath, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("filelist: backup list contains no entries")
	}
	return rules, nil
}

// Validate checks the structural invariants in §4.3's "Validation mode":
// the file exists and is non-empty, the first non-blank line is a path, not
// a filter, every regex compiles, and every path line refers to an existing
// filesystem entry. It returns the first failure with a human-readable
// location.
func Validate(listPath string) error {
	data, err := os.ReadFile(listPath) // #nosec G304 - operator-supplied backup-list path
	if err != nil {
		return fmt.Errorf("filelist: failed to open backup list: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("filelist: backup list is empty")
	}

	lines := strings.Split(string(data), "\n")
	first := true
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lineNo := i + 1
		if strings.HasPrefix(line, "-") {
			if first {
				return fmt.Errorf("filelist: line %d: backup list started with a filter, not a path", lineNo)
			}
			if _, err := regexp.Compile(strings.TrimSpace(line[1:])); err != nil {
				return fmt.Errorf("filelist: line %d: invalid regex %q: %w", lineNo, line, err)
			}
			continue
		}
		first = false
		if _, err := os.Stat(line); err != nil {
			return fmt.Errorf("filelist: line %d: file/directory not found: %s", lineNo, line)
		}
	}
	return nil
}
