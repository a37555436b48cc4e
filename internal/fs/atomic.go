package fs

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// tempPattern is the CreateTemp pattern for in-flight atomic writes.
const tempPattern = ".backpack-tmp-*"

// WriteFileAtomic writes data to path atomically using a temp file + rename.
// The temp file is created in the same directory as path so the rename stays on one filesystem.
// If the operation fails, the original file (if any) is left unchanged.
// The caller must ensure the parent directory exists.
func WriteFileAtomic(fsys FS, path string, data []byte, perm os.FileMode) error {
	tmpPath, w, err := fsys.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return err
	}

	success := false
	defer func() {
		if !success {
			fsys.Remove(tmpPath)
		}
	}()

	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	if err := fsys.Chmod(tmpPath, perm); err != nil {
		return err
	}

	if err := fsys.Rename(tmpPath, path); err != nil {
		return err
	}

	success = true
	return nil
}

// WriteJSONAtomic marshals v as indented JSON with a trailing newline and
// writes it with WriteFileAtomic. The output is stable for committed records
// so repeated writes of the same value produce identical bytes.
func WriteJSONAtomic(fsys FS, path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return WriteFileAtomic(fsys, path, data, perm)
}
