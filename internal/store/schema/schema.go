// Package schema lee las migraciones embebidas y las ordena.
package schema

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Migration es un par up/down identificado por su prefijo de versión.
type Migration struct {
	Version string // "0001_users"
	Up      string
	Down    string
}

// Load devuelve las migraciones de dir ordenadas por versión ascendente.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	byVersion := map[string]*Migration{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		var version, kind string
		switch {
		case strings.HasSuffix(name, "_up.sql"):
			version, kind = strings.TrimSuffix(name, "_up.sql"), "up"
		case strings.HasSuffix(name, "_down.sql"):
			version, kind = strings.TrimSuffix(name, "_down.sql"), "down"
		default:
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if kind == "up" {
			m.Up = string(b)
		} else {
			m.Down = string(b)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has no up script", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Pending filtra las migraciones cuya versión no está en applied.
func Pending(all []Migration, applied map[string]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}
