// Package artifact manages the plugin files inside the plugins directory.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrPluginsDirMissing = errors.New("plugins directory does not exist")
	ErrArtifactNotFound  = errors.New("artifact file does not exist")
	ErrAbandoned         = errors.New("overwrite of existing file declined")
	ErrInvalidFileName   = errors.New("invalid artifact file name")
)

type Error struct {
	Op       string
	FileName string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.FileName, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConflictResolver is asked before an existing file is overwritten.
type ConflictResolver func(fileName string) (bool, error)

type InstallResult struct {
	FileName string
	Size     int64
	Checksum string
}

type Manager struct {
	fs         afero.Fs
	dir        string
	downloader *Downloader
}

func NewManager(fs afero.Fs, dir string, downloader *Downloader) *Manager {
	if downloader == nil {
		downloader = NewDownloader(nil, "")
	}
	return &Manager{fs: fs, dir: dir, downloader: downloader}
}

func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) path(fileName string) (string, error) {
	if fileName == "" || fileName == "." || fileName == ".." || strings.ContainsAny(fileName, `/\`) {
		return "", &Error{Op: "access", FileName: fileName, Err: ErrInvalidFileName}
	}
	return filepath.Join(m.dir, fileName), nil
}

func (m *Manager) CheckDir() error {
	ok, err := afero.DirExists(m.fs, m.dir)
	if err != nil {
		return &Error{Op: "access", FileName: m.dir, Err: err}
	}
	if !ok {
		return &Error{Op: "access", FileName: m.dir, Err: ErrPluginsDirMissing}
	}
	return nil
}

func (m *Manager) Exists(fileName string) (bool, error) {
	p, err := m.path(fileName)
	if err != nil {
		return false, err
	}
	return afero.Exists(m.fs, p)
}

func (m *Manager) Delete(fileName string) error {
	p, err := m.path(fileName)
	if err != nil {
		return err
	}
	if err := m.CheckDir(); err != nil {
		return err
	}
	exists, err := afero.Exists(m.fs, p)
	if err != nil {
		return &Error{Op: "delete", FileName: fileName, Err: err}
	}
	if !exists {
		return &Error{Op: "delete", FileName: fileName, Err: ErrArtifactNotFound}
	}
	if err := m.fs.Remove(p); err != nil {
		return &Error{Op: "delete", FileName: fileName, Err: err}
	}
	return nil
}

// Install downloads downloadURL into the plugins directory as fileName. If the
// file already exists, resolve decides whether it is replaced; a refusal
// returns ErrAbandoned before anything is downloaded.
func (m *Manager) Install(ctx context.Context, downloadURL, fileName string, resolve ConflictResolver) (*InstallResult, error) {
	p, err := m.path(fileName)
	if err != nil {
		return nil, err
	}
	if err := m.CheckDir(); err != nil {
		return nil, err
	}
	exists, err := afero.Exists(m.fs, p)
	if err != nil {
		return nil, &Error{Op: "write", FileName: fileName, Err: err}
	}
	if exists {
		overwrite := false
		if resolve != nil {
			overwrite, err = resolve(fileName)
			if err != nil {
				return nil, &Error{Op: "write", FileName: fileName, Err: err}
			}
		}
		if !overwrite {
			return nil, &Error{Op: "write", FileName: fileName, Err: ErrAbandoned}
		}
	}

	tmpFile, err := afero.TempFile(m.fs, m.dir, "."+fileName+".*.part")
	if err != nil {
		return nil, &Error{Op: "write", FileName: fileName, Err: err}
	}
	tmpName := tmpFile.Name()
	n, checksum, err := m.downloader.Download(ctx, downloadURL, tmpFile)
	if closeErr := tmpFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = m.fs.Remove(tmpName)
		return nil, &Error{Op: "download", FileName: fileName, Err: err}
	}
	if err := m.fs.Chmod(tmpName, 0o755); err != nil {
		_ = m.fs.Remove(tmpName)
		return nil, &Error{Op: "write", FileName: fileName, Err: err}
	}

	if exists {
		if err := m.fs.Remove(p); err != nil && !os.IsNotExist(err) {
			_ = m.fs.Remove(tmpName)
			return nil, &Error{Op: "write", FileName: fileName, Err: err}
		}
	}
	if err := m.fs.Rename(tmpName, p); err != nil {
		_ = m.fs.Remove(tmpName)
		return nil, &Error{Op: "write", FileName: fileName, Err: err}
	}
	return &InstallResult{FileName: fileName, Size: n, Checksum: checksum}, nil
}
