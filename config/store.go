package config

import (
	"errors"
	"os"
	"sync"
)

// Store persists option changes to the file the configuration was loaded
// from. Values that only came from the environment are never written.
type Store struct {
	filename string
	mutex    sync.Mutex
	options  Options
}

func NewStore(filename string, configuration *Configuration) *Store {
	return &Store{
		filename: filename,
		options:  configuration.Options,
	}
}

func (s *Store) Options() Options {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.options
}

// UpdateOptions normalizes new options and writes them into the file on
// disk, keeping everything else in it as is. The stored options are left
// untouched when writing fails.
func (s *Store) UpdateOptions(options Options) (Options, error) {
	options = options.Normalize()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	onDisk := &Configuration{}
	if err := readFile(s.filename, onDisk); err != nil && !errors.Is(err, os.ErrNotExist) {
		return s.options, err
	}

	onDisk.Options = options

	if err := writeFile(s.filename, onDisk); err != nil {
		return s.options, err
	}

	s.options = options

	return options, nil
}
