package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// LanguageTally maps language names to accumulated byte counts.
//
// Keys are remembered in the order they were first added so iteration (and
// therefore chart slice order) is deterministic. The zero value is ready to use.
type LanguageTally struct {
	order []string
	bytes map[string]int64
}

func NewLanguageTally() *LanguageTally {
	return &LanguageTally{}
}

// Add adds n bytes to lang, creating the entry when lang is new.
func (t *LanguageTally) Add(lang string, n int64) {
	if t.bytes == nil {
		t.bytes = make(map[string]int64)
	}
	if _, ok := t.bytes[lang]; !ok {
		t.order = append(t.order, lang)
	}
	t.bytes[lang] += n
}

// AddAll folds one repository's language map into the tally.
//
// Maps have no order, so entries are added largest first (ties by name), which
// matches the order the languages endpoint reports them in.
func (t *LanguageTally) AddAll(langs map[string]int64) {
	for _, lang := range SortedLanguages(langs) {
		t.Add(lang, langs[lang])
	}
}

// Languages returns the language names in insertion order.
func (t *LanguageTally) Languages() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *LanguageTally) Bytes(lang string) int64 {
	if t == nil {
		return 0
	}
	return t.bytes[lang]
}

func (t *LanguageTally) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

func (t *LanguageTally) Total() int64 {
	if t == nil {
		return 0
	}
	var total int64
	for _, n := range t.bytes {
		total += n
	}
	return total
}

// MarshalJSON encodes the tally as a JSON object whose keys keep insertion order.
func (t *LanguageTally) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if t != nil {
		for i, lang := range t.order {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(lang)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			val, err := json.Marshal(t.bytes[lang])
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the key order of the input.
func (t *LanguageTally) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("language tally: expected JSON object, got %v", tok)
	}

	*t = LanguageTally{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		lang, _ := tok.(string)
		var n int64
		if err := dec.Decode(&n); err != nil {
			return err
		}
		t.Add(lang, n)
	}
	_, err = dec.Token()
	return err
}

// SortedLanguages returns the keys of langs ordered by byte count descending,
// then by name.
func SortedLanguages(langs map[string]int64) []string {
	keys := make([]string, 0, len(langs))
	for k := range langs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if langs[keys[i]] != langs[keys[j]] {
			return langs[keys[i]] > langs[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
