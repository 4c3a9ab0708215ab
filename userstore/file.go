package userstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"
)

type fileDocument struct {
	Users []*Record `yaml:"users"`
}

// FileOptions configures a File store.
type FileOptions struct {
	Logger logr.Logger
}

// File serves records loaded from a YAML document. Last-login stamps are
// kept in memory only; the file is never written.
type File struct {
	path string
	mem  *Memory
	log  logr.Logger
}

// OpenFile loads path. The document must parse and every record must be
// valid, otherwise no store is returned.
func OpenFile(path string, opts FileOptions) (*File, error) {
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	f := &File{path: path, mem: NewMemory(), log: opts.Logger.WithName("userstore")}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Lookup(ctx context.Context, username string) (*Record, error) {
	return f.mem.Lookup(ctx, username)
}

func (f *File) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	return f.mem.UpdateLastLogin(ctx, username, at)
}

// Len counts loaded records.
func (f *File) Len() int {
	return f.mem.Len()
}

// Reload re-reads the file. On error the previous records stay in place.
func (f *File) Reload() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	records, err := parseDocument(raw)
	if err != nil {
		return err
	}

	for _, r := range records {
		if prev, err := f.mem.Lookup(context.Background(), r.Username); err == nil && r.LastLogin == nil {
			r.LastLogin = prev.LastLogin
		}
	}
	f.mem.Replace(records)
	return nil
}

func parseDocument(raw []byte) ([]*Record, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("userstore: parse users file: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Users))
	for i, r := range doc.Users {
		if r == nil || r.Username == "" {
			return nil, fmt.Errorf("userstore: user %d has no username", i)
		}
		if _, dup := seen[r.Username]; dup {
			return nil, fmt.Errorf("userstore: duplicate user %q", r.Username)
		}
		seen[r.Username] = struct{}{}
		if !r.Role.Valid() {
			return nil, fmt.Errorf("userstore: user %q has no valid role", r.Username)
		}
	}
	return doc.Users, nil
}

// Watch reloads the store whenever the file is written or replaced. The
// parent directory is watched so editors that rename over the file are
// seen too. Watch blocks until ctx is done.
func (f *File) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return err
	}
	target := filepath.Clean(f.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("userstore: watcher closed")
			}
			if filepath.Clean(event.Name) != target || !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if err := f.Reload(); err != nil {
				f.log.Error(err, "reload users file failed, keeping previous records", "path", f.path)
				continue
			}
			f.log.Info("users file reloaded", "path", f.path, "users", f.mem.Len())
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("userstore: watcher closed")
			}
			f.log.Error(err, "users file watcher error")
		}
	}
}
