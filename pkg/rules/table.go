package rules

import (
	"sort"

	"gopkg.in/yaml.v3"
)

// Table maps normalized transaction keys to categories. One rule can cover
// many transactions — that is the point.
type Table struct {
	rules map[string]string
	dirty bool
}

func NewTable() *Table {
	return &Table{rules: make(map[string]string)}
}

// Upsert creates or replaces the rule for a key.
func (t *Table) Upsert(key, category string) {
	if key == "" {
		return
	}
	if current, ok := t.rules[key]; ok && current == category {
		return
	}
	t.rules[key] = category
	t.dirty = true
}

// Lookup returns the category for a key, if a rule exists.
func (t *Table) Lookup(key string) (string, bool) {
	category, ok := t.rules[key]
	return category, ok
}

// Delete removes the rule for a key.
func (t *Table) Delete(key string) {
	if _, ok := t.rules[key]; ok {
		delete(t.rules, key)
		t.dirty = true
	}
}

// Len returns the number of rules.
func (t *Table) Len() int { return len(t.rules) }

// Dirty reports whether the table changed since the last MarkClean.
func (t *Table) Dirty() bool { return t.dirty }

// MarkClean is called after the table has been durably committed.
func (t *Table) MarkClean() { t.dirty = false }

// Keys returns all rule keys, sorted.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.rules))
	for k := range t.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type tableFile struct {
	Rules map[string]string `yaml:"rules"`
}

// MarshalYAMLBytes serializes the table for persistence alongside the
// ledger.
func (t *Table) MarshalYAMLBytes() ([]byte, error) {
	return yaml.Marshal(tableFile{Rules: t.rules})
}

// UnmarshalYAMLBytes rebuilds a table from its persisted form.
func UnmarshalYAMLBytes(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	t := NewTable()
	for k, v := range f.Rules {
		t.rules[k] = v
	}
	return t, nil
}
