package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bassamadnan/rfimail/subject"
)

// Filters are batch rules for messages that should not be stored at all.
type Filters struct {
	IgnoreSenders           []string `json:"ignoreSenders"`
	IgnoreKeywordsInSubject []string `json:"ignoreKeywordsInSubject"`
}

// Document is the on-disk layout of the vocabulary file.
type Document struct {
	ThreadTypes []string `json:"threadTypes"`
	JobNames    []string `json:"jobNames"`
	Filters
}

// Manager loads, saves and hands out copies of the vocabulary file.
type Manager struct {
	filePath string
	doc      *Document
	mu       sync.RWMutex
}

// NewManager creates a manager for the file at filePath. A missing file is
// created with empty lists.
func NewManager(filePath string) (*Manager, error) {
	m := &Manager{filePath: filePath, doc: emptyDocument()}
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func emptyDocument() *Document {
	return &Document{
		ThreadTypes: []string{},
		JobNames:    []string{},
		Filters: Filters{
			IgnoreSenders:           []string{},
			IgnoreKeywordsInSubject: []string{},
		},
	}
}

// Load (re)reads the file.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.doc = emptyDocument()
			return m.save()
		}
		return fmt.Errorf("read vocabulary %s: %w", m.filePath, err)
	}

	doc := emptyDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("parse vocabulary %s: %w", m.filePath, err)
	}
	m.doc = doc
	return nil
}

// save writes the current document. Callers hold the write lock.
func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(m.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create vocabulary dir: %w", err)
		}
	}
	return os.WriteFile(m.filePath, data, 0o644)
}

// Vocabulary returns a snapshot for building a classifier.
func (m *Manager) Vocabulary() subject.Vocabulary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return subject.Vocabulary{
		ThreadTypes: slices.Clone(m.doc.ThreadTypes),
		JobNames:    slices.Clone(m.doc.JobNames),
	}
}

// Filters returns a copy of the current filters.
func (m *Manager) Filters() Filters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Filters{
		IgnoreSenders:           slices.Clone(m.doc.IgnoreSenders),
		IgnoreKeywordsInSubject: slices.Clone(m.doc.IgnoreKeywordsInSubject),
	}
}

func (m *Manager) AddThreadType(name string) error {
	return m.update(func(d *Document) bool { return addUnique(&d.ThreadTypes, name) })
}

func (m *Manager) RemoveThreadType(name string) error {
	return m.update(func(d *Document) bool { return remove(&d.ThreadTypes, name) })
}

func (m *Manager) AddJobName(name string) error {
	return m.update(func(d *Document) bool { return addUnique(&d.JobNames, name) })
}

func (m *Manager) RemoveJobName(name string) error {
	return m.update(func(d *Document) bool { return remove(&d.JobNames, name) })
}

// AddIgnoreSender skips future messages whose sender contains sender.
func (m *Manager) AddIgnoreSender(sender string) error {
	return m.update(func(d *Document) bool { return addUnique(&d.IgnoreSenders, sender) })
}

// AddIgnoreKeywordInSubject skips future messages whose subject contains
// keyword.
func (m *Manager) AddIgnoreKeywordInSubject(keyword string) error {
	return m.update(func(d *Document) bool { return addUnique(&d.IgnoreKeywordsInSubject, keyword) })
}

// update applies fn and saves only when fn reports a change.
func (m *Manager) update(fn func(*Document) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !fn(m.doc) {
		return nil
	}
	return m.save()
}

func addUnique(list *[]string, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || slices.Contains(*list, value) {
		return false
	}
	*list = append(*list, value)
	return true
}

func remove(list *[]string, value string) bool {
	i := slices.Index(*list, value)
	if i < 0 {
		return false
	}
	*list = slices.Delete(*list, i, i+1)
	return true
}

// Skip reports whether a message from sender with the given subject matches
// one of the filters, and which rule matched.
func (f Filters) Skip(sender, subjectLine string) (bool, string) {
	from := strings.ToLower(sender)
	for _, s := range f.IgnoreSenders {
		if s != "" && strings.Contains(from, strings.ToLower(s)) {
			return true, "sender:" + s
		}
	}
	subj := strings.ToLower(subjectLine)
	for _, k := range f.IgnoreKeywordsInSubject {
		if k != "" && strings.Contains(subj, strings.ToLower(k)) {
			return true, "subject:" + k
		}
	}
	return false, ""
}
