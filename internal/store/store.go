package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-mngr/mngr/pkg/registry"
	"github.com/gofrs/flock"
	"github.com/moby/sys/atomicwriter"
	"github.com/pelletier/go-toml/v2"
)

const DefaultFileName = "mngr.toml"

var ErrLocked = errors.New("registry is in use by another mngr session")

type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s registry %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Store struct {
	path string
	lock *flock.Flock
}

// Open locks the registry file at path for the lifetime of the returned Store.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, &Error{Op: "lock", Path: path, Err: err}
	}
	if !locked {
		return nil, &Error{Op: "lock", Path: path, Err: ErrLocked}
	}
	return &Store{path: path, lock: lock}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &Error{Op: "stat", Path: s.path, Err: err}
}

func (s *Store) Load() (*registry.Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &Error{Op: "read", Path: s.path, Err: err}
	}
	var reg registry.Registry
	if err := toml.Unmarshal(data, &reg); err != nil {
		return nil, &Error{Op: "parse", Path: s.path, Err: err}
	}
	if reg.ID == "" {
		return nil, &Error{Op: "parse", Path: s.path, Err: errors.New("missing registry id")}
	}
	if reg.Plugins == nil {
		reg.Plugins = make(map[string]*registry.PluginRecord)
	}
	for name, p := range reg.Plugins {
		if p.Name == "" {
			p.Name = name
		}
	}
	return &reg, nil
}

func (s *Store) Save(reg *registry.Registry) error {
	data, err := toml.Marshal(reg)
	if err != nil {
		return &Error{Op: "encode", Path: s.path, Err: err}
	}
	if err := atomicwriter.WriteFile(s.path, data, 0o600); err != nil {
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

// LoadOrCreate loads the registry, or creates and saves a new one if the file
// does not exist yet. created reports which of the two happened.
func (s *Store) LoadOrCreate() (reg *registry.Registry, created bool, err error) {
	exists, err := s.Exists()
	if err != nil {
		return nil, false, err
	}
	if exists {
		reg, err = s.Load()
		return reg, false, err
	}
	reg = registry.New()
	if err := s.Save(reg); err != nil {
		return nil, false, err
	}
	return reg, true, nil
}

func (s *Store) Close() error {
	if err := s.lock.Unlock(); err != nil {
		return &Error{Op: "unlock", Path: s.path, Err: err}
	}
	return nil
}
