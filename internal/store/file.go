// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/holoauth/internal/auth"
)

// fileFormatVersion is written to every state file.
const fileFormatVersion = 1

// FileStateStore keeps the snapshot in a single YAML file.
type FileStateStore struct {
	path string
}

// NewFileStateStore creates a store writing to path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Path returns the state file location.
func (s *FileStateStore) Path() string {
	return s.path
}

type stateDocument struct {
	Version  int             `yaml:"version"`
	Settings settingsDoc     `yaml:"settings"`
	Accounts []accountRecord `yaml:"accounts"`
}

type settingsDoc struct {
	Verbose      bool   `yaml:"verbose"`
	Bootstrapped bool   `yaml:"bootstrapped"`
	LastTick     uint64 `yaml:"last_tick"`
}

type accountRecord struct {
	Identity       string       `yaml:"identity"`
	Role           string       `yaml:"role"`
	CredentialHash string       `yaml:"credential_hash,omitempty"`
	Token          *tokenRecord `yaml:"token,omitempty"`
	CreatedAt      uint64       `yaml:"created_at"`
}

type tokenRecord struct {
	Value    string `yaml:"value"`
	IssuedAt uint64 `yaml:"issued_at"`
}

// Load reads and decodes the state file.
func (s *FileStateStore) Load(_ context.Context) (*auth.State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrStateAbsent
	}
	if err != nil {
		return nil, oops.Code("STATE_LOAD_FAILED").With("path", s.path).Wrap(err)
	}

	var doc stateDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("STATE_DECODE_FAILED").With("path", s.path).Wrap(err)
	}
	if doc.Version != fileFormatVersion {
		return nil, oops.Code("STATE_VERSION_UNSUPPORTED").
			With("path", s.path).
			With("version", doc.Version).
			Errorf("unsupported state file version %d", doc.Version)
	}

	accounts := make([]*auth.Account, 0, len(doc.Accounts))
	for _, rec := range doc.Accounts {
		acct := &auth.Account{
			Identity:       rec.Identity,
			Role:           rec.Role,
			CredentialHash: rec.CredentialHash,
			CreatedAt:      auth.Tick(rec.CreatedAt),
		}
		if rec.Token != nil {
			acct.Token = &auth.Token{Value: rec.Token.Value, IssuedAt: auth.Tick(rec.Token.IssuedAt)}
		}
		accounts = append(accounts, acct)
	}

	state, err := auth.Restore(accounts, auth.Settings{
		Verbose:      doc.Settings.Verbose,
		Bootstrapped: doc.Settings.Bootstrapped,
		LastTick:     auth.Tick(doc.Settings.LastTick),
	})
	if err != nil {
		return nil, oops.With("path", s.path).Wrap(err)
	}
	return state, nil
}

// Save writes state to a temporary file in the same directory and renames
// it over the previous file, so readers see either the old or the new
// snapshot.
func (s *FileStateStore) Save(_ context.Context, state *auth.State) error {
	doc := stateDocument{
		Version: fileFormatVersion,
		Settings: settingsDoc{
			Verbose:      state.Settings.Verbose,
			Bootstrapped: state.Settings.Bootstrapped,
			LastTick:     uint64(state.Settings.LastTick),
		},
		Accounts: make([]accountRecord, 0, len(state.Accounts)),
	}
	for _, acct := range state.AccountList() {
		rec := accountRecord{
			Identity:       acct.Identity,
			Role:           acct.Role,
			CredentialHash: acct.CredentialHash,
			CreatedAt:      uint64(acct.CreatedAt),
		}
		if acct.Token != nil {
			rec.Token = &tokenRecord{Value: acct.Token.Value, IssuedAt: uint64(acct.Token.IssuedAt)}
		}
		doc.Accounts = append(doc.Accounts, rec)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return oops.Code("STATE_ENCODE_FAILED").Wrap(err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("STATE_SAVE_FAILED").With("path", dir).With("operation", "create directory").Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return oops.Code("STATE_SAVE_FAILED").With("path", dir).With("operation", "create temp file").Wrap(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code("STATE_SAVE_FAILED").With("path", tmpName).With("operation", "write").Wrap(err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return oops.Code("STATE_SAVE_FAILED").With("path", tmpName).With("operation", "chmod").Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return oops.Code("STATE_SAVE_FAILED").With("path", tmpName).With("operation", "sync").Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("STATE_SAVE_FAILED").With("path", tmpName).With("operation", "close").Wrap(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return oops.Code("STATE_SAVE_FAILED").With("path", s.path).With("operation", "rename").Wrap(err)
	}
	return nil
}
