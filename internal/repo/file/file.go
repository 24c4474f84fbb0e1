package file

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/pingwatch/internal/domain"
	"github.com/hamed0406/pingwatch/internal/repo"
)

// Registry reads monitors from a YAML file. The file is re-read on every
// call so edits are picked up by the next sweep without a restart.
//
//	monitors:
//	  - id: api
//	    name: Public API
//	    url: https://api.example.com/healthz
//	    active: true # optional, defaults to true
//	    alert_email: ops@example.com
//	    webhook_url: https://hooks.slack.com/services/...
type Registry struct {
	Path string
}

func New(path string) *Registry {
	return &Registry{Path: path}
}

type document struct {
	Monitors []entry `yaml:"monitors"`
}

// entry mirrors domain.Monitor with Active optional; a monitor without an
// active key is probed.
type entry struct {
	ID         domain.MonitorID `yaml:"id"`
	Name       string           `yaml:"name"`
	URL        string           `yaml:"url"`
	Active     *bool            `yaml:"active"`
	AlertEmail string           `yaml:"alert_email"`
	WebhookURL string           `yaml:"webhook_url"`
}

func (e entry) monitor() domain.Monitor {
	return domain.Monitor{
		ID:         e.ID,
		Name:       e.Name,
		URL:        e.URL,
		Active:     e.Active == nil || *e.Active,
		AlertEmail: e.AlertEmail,
		WebhookURL: e.WebhookURL,
	}
}

func (r *Registry) load() ([]domain.Monitor, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read monitors file: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse monitors file: %w", err)
	}
	seen := make(map[domain.MonitorID]bool, len(doc.Monitors))
	out := make([]domain.Monitor, 0, len(doc.Monitors))
	for i, e := range doc.Monitors {
		m := e.monitor()
		if m.ID == "" {
			return nil, fmt.Errorf("monitor %d: id is required", i)
		}
		if m.URL == "" {
			return nil, fmt.Errorf("monitor %q: url is required", m.ID)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("monitor %q: duplicate id", m.ID)
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out, nil
}

func (r *Registry) ListActive(ctx context.Context) ([]domain.Monitor, error) {
	all, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Monitor, 0, len(all))
	for _, m := range all {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *Registry) Get(ctx context.Context, id domain.MonitorID) (domain.Monitor, error) {
	all, err := r.load()
	if err != nil {
		return domain.Monitor{}, err
	}
	for _, m := range all {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Monitor{}, repo.ErrNotFound
}
