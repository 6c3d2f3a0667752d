package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var migrationFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks that every SQL migration in dir follows the
// <timestamp>_<slug>.sql convention, carries both goose directions, and
// that no two files claim the same version. An empty dir passes.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("migrations dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %q: %w", dir, err)
	}

	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if err := validateMigrationFile(dir, name, versions); err != nil {
			return err
		}
	}
	return nil
}

func validateMigrationFile(dir, name string, versions map[string]string) error {
	match := migrationFileRe.FindStringSubmatch(name)
	if match == nil {
		return fmt.Errorf("migration %q does not match <YYYYMMDDHHMMSS>_<slug>.sql", name)
	}

	version := match[1]
	if other, dup := versions[version]; dup {
		return fmt.Errorf("version %s claimed by both %q and %q", version, other, name)
	}
	versions[version] = name

	contents, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read migration %q: %w", name, err)
	}
	for _, directive := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(string(contents), directive) {
			return fmt.Errorf("migration %q is missing %q", name, directive)
		}
	}
	return nil
}
