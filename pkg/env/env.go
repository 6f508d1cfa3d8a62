package env

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Read parses a file in .env format and returns its key/value pairs.
// Blank lines and lines starting with # are skipped. Values may be wrapped
// in double quotes; quotes and backslashes inside quoted values are
// unescaped. A missing file is not an error and yields an empty map.
func Read(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to open env file %s: %w", path, err)
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found || strings.TrimSpace(key) == "" {
			continue // tolerate malformed lines rather than failing the whole file
		}

		value = strings.TrimSpace(value)
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = value[1 : len(value)-1]
			value = strings.ReplaceAll(value, `\"`, `"`)
			value = strings.ReplaceAll(value, `\\`, `\`)
		}

		vars[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	return vars, nil
}

// Save writes the provided key/value pairs to a file in .env format.
// Variable names are sorted alphabetically so the output is deterministic
// and easy to diff. Values containing whitespace or # characters are quoted
// to preserve their contents; internal quotes and backslashes are escaped.
func Save(path string, vars map[string]string) error {
	if len(vars) == 0 {
		return nil // nothing to write
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create env directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create env file %s: %w", path, err)
	}
	defer f.Close()

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := vars[k]
		if strings.ContainsAny(v, " \t\n\r#\"") {
			v = fmt.Sprintf("%q", v) // %q escapes internal quotes and backslashes
		}
		if _, err := fmt.Fprintf(f, "%s=%s\n", k, v); err != nil {
			return fmt.Errorf("failed to write env variable %s: %w", k, err)
		}
	}

	return nil
}
