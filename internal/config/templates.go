// internal/config/templates.go
package config

import (
	"log"
	"os"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/leadengage-backend/internal/model"
)

// FollowUpTemplate is one step of a scenario's queue. Seq 0 is the greeting.
type FollowUpTemplate struct {
	Seq          int    `yaml:"seq"`
	Body         string `yaml:"body"`
	DelayMinutes int    `yaml:"delay_minutes"`
	UseAI        bool   `yaml:"use_ai"`
}

type templateFile struct {
	Scenarios map[string][]FollowUpTemplate `yaml:"scenarios"`
}

// TemplateStore holds the per-scenario template sets and supports hot reload
// when the YAML file changes on disk.
type TemplateStore struct {
	mu   sync.RWMutex
	path string
	sets map[model.Scenario][]FollowUpTemplate
}

// NewStaticTemplates builds a store from an in-memory set, with no file
// backing. Used by tests and single-binary dev runs.
func NewStaticTemplates(sets map[model.Scenario][]FollowUpTemplate) *TemplateStore {
	copied := make(map[model.Scenario][]FollowUpTemplate, len(sets))
	for sc, templates := range sets {
		sorted := make([]FollowUpTemplate, len(templates))
		copy(sorted, templates)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
		copied[sc] = sorted
	}
	return &TemplateStore{sets: copied}
}

func LoadTemplates(path string) (*TemplateStore, error) {
	s := &TemplateStore{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TemplateStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}

	sets := make(map[model.Scenario][]FollowUpTemplate, len(f.Scenarios))
	for name, templates := range f.Scenarios {
		sorted := make([]FollowUpTemplate, len(templates))
		copy(sorted, templates)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
		sets[model.Scenario(name)] = sorted
	}

	s.mu.Lock()
	s.sets = sets
	s.mu.Unlock()
	return nil
}

// ForScenario returns the template set ordered by sequence number. The
// returned slice is a copy; callers may not mutate shared state.
func (s *TemplateStore) ForScenario(sc model.Scenario) []FollowUpTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := s.sets[sc]
	out := make([]FollowUpTemplate, len(templates))
	copy(out, templates)
	return out
}

// Watch reloads the store whenever the file is rewritten. Blocks until the
// watcher fails; run it in a goroutine.
func (s *TemplateStore) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.path); err != nil {
		return err
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := s.reload(); err != nil {
					log.Println("⚠️ Failed to reload templates:", err)
					continue
				}
				log.Println("✅ Templates reloaded from", s.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Println("⚠️ Template watcher error:", err)
		}
	}
}
