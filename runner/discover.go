// ABOUTME: Walks a test root for *.test.yaml files and registers their cases into a Suite.
// ABOUTME: Hidden directories are skipped; duplicate test names fail the load.

package runner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const testFileSuffix = ".test.yaml"

// testFileDoc is the on-disk shape of one test file.
type testFileDoc struct {
	Tests []testFileEntry `yaml:"tests"`
}

type testFileEntry struct {
	Name    string         `yaml:"name"`
	Payload map[string]any `yaml:"payload"`
	Steps   []string       `yaml:"steps"`
	Direct  bool           `yaml:"direct"`
}

// Discover walks root for test files and registers every case into suite.
func Discover(root string, suite *Suite) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), testFileSuffix) {
			return nil
		}
		return LoadFile(path, suite)
	})
}

// LoadFile parses one test file and registers its cases.
func LoadFile(path string, suite *Suite) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("runner: reading %s: %w", path, err)
	}

	var doc testFileDoc
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return fmt.Errorf("runner: parsing %s: %w", path, err)
	}
	if len(doc.Tests) == 0 {
		return fmt.Errorf("runner: %s declares no tests", path)
	}

	for _, entry := range doc.Tests {
		spec := CaseSpec{
			Name:     entry.Name,
			FilePath: path,
			Steps:    entry.Steps,
			Direct:   entry.Direct,
		}
		if len(entry.Payload) > 0 {
			spec.Payload = entry.Payload
		}
		// Direct cases from YAML have no function body; they must be bound
		// programmatically, so declaring one here is a load error.
		if entry.Direct {
			return fmt.Errorf("runner: %s: test %q marked direct but file tests cannot carry a function", path, entry.Name)
		}
		tc, err := NewTestCase(spec)
		if err != nil {
			return fmt.Errorf("runner: %s: %w", path, err)
		}
		if err := suite.Register(tc); err != nil {
			return fmt.Errorf("runner: %s: %w", path, err)
		}
	}
	return nil
}
