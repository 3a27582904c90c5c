// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package session

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// CodeNotFound is returned by Load when no session file exists yet.
const CodeNotFound = "SESSION_NOT_FOUND"

// IsNotFound reports whether err is a missing-session-file error.
func IsNotFound(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == CodeNotFound
}

// FileStore persists one sealed session blob on disk. The plaintext never
// touches the filesystem.
type FileStore struct {
	path   string
	cipher *Cipher
}

// NewFileStore creates a store writing sealed blobs to path.
func NewFileStore(path string, cipher *Cipher) *FileStore {
	return &FileStore{path: path, cipher: cipher}
}

// Load reads and opens the session blob. A missing file returns
// CodeNotFound so callers can distinguish first run from corruption.
func (s *FileStore) Load() ([]byte, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oops.Code(CodeNotFound).With("path", s.path).Wrap(err)
		}
		return nil, oops.With("path", s.path).Wrap(err)
	}
	return s.cipher.Open(blob)
}

// Save seals plaintext and writes it atomically via a temp-file rename.
func (s *FileStore) Save(plaintext []byte) error {
	blob, err := s.cipher.Seal(plaintext)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.With("path", dir).Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return oops.With("path", dir).Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return oops.With("path", tmp.Name()).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.With("path", tmp.Name()).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return oops.With("path", s.path).Wrap(err)
	}
	return nil
}
