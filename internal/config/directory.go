package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Bottswana/BullyBot/internal/datasource"
)

// UsersFile is the YAML layout of the user directory.
type UsersFile struct {
	Users []UserEntry `yaml:"users"`
}

// UserEntry is one configured user.
type UserEntry struct {
	Name     string        `yaml:"name"`
	Telegram string        `yaml:"telegram"` // "@handle" used to mention the user
	Modules  []ModuleEntry `yaml:"modules"`
}

// ModuleEntry enables a module for a user with a data source.
type ModuleEntry struct {
	Module     string            `yaml:"module"`
	DataSource string            `yaml:"datasource"`
	Config     map[string]string `yaml:"config"`
}

// Directory serves the user directory and reloads it when the file changes.
type Directory struct {
	path string
	log  *zap.Logger

	mu    sync.RWMutex
	users []UserEntry
}

// LoadDirectory parses path. The file must exist and be valid YAML.
func LoadDirectory(path string, log *zap.Logger) (*Directory, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Directory{path: path, log: log}
	if err := d.reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewStaticDirectory serves a fixed set of users. It never reloads.
func NewStaticDirectory(users []UserEntry) *Directory {
	return &Directory{users: users, log: zap.NewNop()}
}

func (d *Directory) reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("read users file: %w", err)
	}
	var f UsersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse users file %s: %w", d.path, err)
	}
	var users []UserEntry
	for _, u := range f.Users {
		u.Name = strings.TrimSpace(u.Name)
		if u.Name == "" {
			continue
		}
		users = append(users, u)
	}

	d.mu.Lock()
	d.users = users
	d.mu.Unlock()
	d.log.Info("user directory loaded", zap.String("path", d.path), zap.Int("users", len(users)))
	return nil
}

// Users returns configured user names in file order.
func (d *Directory) Users() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u.Name)
	}
	return out
}

// Lookup finds a user by name, case-insensitively, and returns the canonical name.
func (d *Directory) Lookup(name string) (string, bool) {
	u, ok := d.find(name)
	return u.Name, ok
}

// Mention returns how to address the user in chat, falling back to the name.
func (d *Directory) Mention(name string) string {
	u, ok := d.find(name)
	if !ok {
		return name
	}
	if h := strings.TrimSpace(u.Telegram); h != "" {
		if !strings.HasPrefix(h, "@") {
			h = "@" + h
		}
		return h
	}
	return u.Name
}

// Module returns the data-source config of a user's module. Settings are copied.
func (d *Directory) Module(user, module string) (datasource.Config, bool) {
	u, ok := d.find(user)
	if !ok {
		return datasource.Config{}, false
	}
	for _, m := range u.Modules {
		if !strings.EqualFold(strings.TrimSpace(m.Module), module) {
			continue
		}
		id := strings.TrimSpace(m.DataSource)
		if id == "" {
			continue
		}
		return datasource.Config{
			User:      u.Name,
			AdapterID: id,
			Settings:  datasource.Settings(m.Config).Clone(),
		}, true
	}
	return datasource.Config{}, false
}

func (d *Directory) find(name string) (UserEntry, bool) {
	name = strings.TrimSpace(name)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Name, name) {
			return u, true
		}
	}
	return UserEntry{}, false
}

// Watch reloads the directory when its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
// A bad edit is logged and the previous users stay in effect.
func (d *Directory) Watch(ctx context.Context) error {
	if d.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(d.path)); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()
		target := filepath.Clean(d.path)
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce = time.After(250 * time.Millisecond)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				d.log.Warn("users file watcher error", zap.Error(err))
			case <-debounce:
				debounce = nil
				if err := d.reload(); err != nil {
					d.log.Error("users file reload failed; keeping previous users", zap.Error(err))
				}
			}
		}
	}()
	return nil
}
