/*
Package yaml provides a Gateway that stores one YAML file per account.

PURPOSE:
  The classic deployment keeps each account in its own YAML file under a data
  directory, so operators can inspect or hand-edit a single account without
  touching the rest.

LAYOUT:
  <root>/players/<uuid>.yml
  <root>/banks/<owner uuid>/<name>.yml
  <root>/named/<name>.yml

DURABILITY:
  Saves write to a temp file in the same directory and rename it over the
  target, so a crash mid-write never leaves a truncated account file.

CONCURRENCY:
  Save is invoked from pool threads. A per-gateway mutex serializes writes;
  the rename itself is atomic on POSIX filesystems.

SEE ALSO:
  - account/gateway.go: Gateway contract and Snapshot
  - store/sqlite: relational alternative
*/
package yaml

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	goyaml "gopkg.in/yaml.v3"

	"github.com/EconToolBox/EconToolBox/account"
)

// Gateway persists accounts as YAML files under Root.
type Gateway struct {
	root string
	pool *account.Pool

	mu sync.Mutex
}

// New creates a YAML gateway rooted at dir. Loaded accounts run their
// asynchronous operations on pool; nil is allowed.
func New(dir string, pool *account.Pool) (*Gateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Gateway{root: dir, pool: pool}, nil
}

// Save writes the account's current state to its file.
func (g *Gateway) Save(_ context.Context, acc account.Account) error {
	snap := account.TakeSnapshot(acc)
	path, err := g.pathFor(acc.Key())
	if err != nil {
		return err
	}

	data, err := goyaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode %s: %w", acc.Key(), err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", acc.Key(), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".account-*.yml")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", acc.Key(), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", acc.Key(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", acc.Key(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", acc.Key(), err)
	}
	return nil
}

// Load reads the account stored under key. The account is wired back to this
// gateway for subsequent saves.
func (g *Gateway) Load(_ context.Context, key string) (account.Account, error) {
	path, err := g.pathFor(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %q: %w", key, account.ErrUnknownAccount)
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}

	var snap account.Snapshot
	if err := goyaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return account.FromSnapshot(snap, g, g.pool)
}

// LoadAll walks the data directory and loads every stored account. Used at
// startup to populate the registry.
func (g *Gateway) LoadAll(ctx context.Context) ([]account.Account, error) {
	var accounts []account.Account
	err := filepath.WalkDir(g.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".yml") {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var snap account.Snapshot
		if err := goyaml.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		acc, err := account.FromSnapshot(snap, g, g.pool)
		if err != nil {
			return fmt.Errorf("restore %s: %w", path, err)
		}
		accounts = append(accounts, acc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// Delete removes the account file for key, if present. Used when named
// accounts are removed.
func (g *Gateway) Delete(_ context.Context, key string) error {
	path, err := g.pathFor(key)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// pathFor maps an identity key onto the on-disk layout.
func (g *Gateway) pathFor(key string) (string, error) {
	kind, rest, ok := strings.Cut(key, ":")
	if !ok {
		return "", fmt.Errorf("identity key %q: %w", key, account.ErrUnknownAccount)
	}
	switch account.Kind(kind) {
	case account.KindPlayer:
		return filepath.Join(g.root, "players", rest+".yml"), nil
	case account.KindBank:
		owner, name, ok := strings.Cut(rest, ":")
		if !ok {
			return "", fmt.Errorf("bank key %q: %w", key, account.ErrUnknownAccount)
		}
		return filepath.Join(g.root, "banks", owner, name+".yml"), nil
	case account.KindNamed:
		return filepath.Join(g.root, "named", rest+".yml"), nil
	}
	return "", fmt.Errorf("identity key %q: %w", key, account.ErrUnknownAccount)
}
