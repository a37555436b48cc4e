package scaffold

import (
	"os"
	"path/filepath"

	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// StubFile represents a stub file to create.
type StubFile struct {
	RelPath string // slash-separated path from repo root (e.g. ".backpack/task.md")
	Content string
}

// DefaultStubs returns the list of stub files to create.
func DefaultStubs() []StubFile {
	return []StubFile{
		{RelPath: store.TaskFile, Content: TaskStub},
		{RelPath: store.AgentsFile, Content: AgentsStub},
	}
}

// CreateStubsResult holds the result of stub creation.
type CreateStubsResult struct {
	Created []string // relative paths of files that were created
	Skipped []string // relative paths of files that already existed
}

// CreateStubs creates stub files under repoRoot if they don't exist.
// Never overwrites existing files.
func CreateStubs(fsys fs.FS, repoRoot string) (CreateStubsResult, error) {
	result := CreateStubsResult{}

	if err := fsys.MkdirAll(filepath.Join(repoRoot, store.MetaDir), 0o755); err != nil {
		return result, err
	}

	for _, stub := range DefaultStubs() {
		absPath := filepath.Join(repoRoot, filepath.FromSlash(stub.RelPath))

		_, err := fsys.Stat(absPath)
		if err == nil {
			result.Skipped = append(result.Skipped, stub.RelPath)
			continue
		}
		if !os.IsNotExist(err) {
			return result, err
		}

		if err := fsys.WriteFile(absPath, []byte(stub.Content), 0o644); err != nil {
			return result, err
		}
		result.Created = append(result.Created, stub.RelPath)
	}

	return result, nil
}
