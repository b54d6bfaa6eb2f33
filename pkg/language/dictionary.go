package language

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed content/*.yaml
var contentFS embed.FS

// ContentDictionary is the single seam through which every component obtains
// language-specific text and keyword tables.
type ContentDictionary interface {
	// Text returns the message stored under key.
	Text(lang Language, key string) string
	// Render executes the message under key as a text/template with data.
	Render(lang Language, key string, data any) string
	// Keywords returns the normalized keyword list stored under key.
	Keywords(lang Language, key string) []string
	// Groups returns every keyword list whose key starts with prefix+".",
	// keyed by the remainder of the key.
	Groups(lang Language, prefix string) map[string][]string
}

// table is the on-disk layout of one content file.
type table struct {
	Language Language            `yaml:"language"`
	Messages map[string]string   `yaml:"messages"`
	Keywords map[string][]string `yaml:"keywords"`
}

// Dictionary is a ContentDictionary backed by YAML tables.
type Dictionary struct {
	tables map[Language]*table

	mu        sync.RWMutex
	templates map[string]*template.Template
}

var (
	builtinOnce sync.Once
	builtin     *Dictionary
)

// Builtin returns the dictionary compiled from the embedded content tables.
// It panics if the embedded tables are malformed, which is a build defect.
func Builtin() *Dictionary {
	builtinOnce.Do(func() {
		d, err := LoadFS(contentFS, "content")
		if err != nil {
			panic(fmt.Sprintf("embedded content tables: %v", err))
		}
		builtin = d
	})
	return builtin
}

// LoadFS parses every *.yaml file in dir of fsys.
func LoadFS(fsys fs.FS, dir string) (*Dictionary, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}
	d := &Dictionary{
		tables:    make(map[Language]*table),
		templates: make(map[string]*template.Template),
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if err := d.add(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
	}
	if _, ok := d.tables[Default]; !ok {
		return nil, fmt.Errorf("missing default %q table", Default)
	}
	return d, nil
}

// NewDictionary builds a dictionary from raw YAML documents, one per language.
func NewDictionary(docs ...[]byte) (*Dictionary, error) {
	d := &Dictionary{
		tables:    make(map[Language]*table),
		templates: make(map[string]*template.Template),
	}
	for _, doc := range docs {
		if err := d.add(doc); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dictionary) add(data []byte) error {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return err
	}
	if !t.Language.IsSupported() {
		return fmt.Errorf("unsupported language %q", t.Language)
	}
	for k, words := range t.Keywords {
		for i, w := range words {
			words[i] = Normalize(w)
		}
		t.Keywords[k] = words
	}
	d.tables[t.Language] = &t
	return nil
}

// Text implements ContentDictionary. A key missing in lang falls back to the
// default language only; a key missing everywhere yields the key itself so the
// defect is visible rather than silent.
func (d *Dictionary) Text(lang Language, key string) string {
	if t, ok := d.tables[lang]; ok {
		if s, ok := t.Messages[key]; ok {
			return s
		}
	}
	if lang != Default {
		if t, ok := d.tables[Default]; ok {
			if s, ok := t.Messages[key]; ok {
				slog.Debug("Content key missing, using default language", "language", lang, "key", key)
				return s
			}
		}
	}
	slog.Warn("Content key missing", "language", lang, "key", key)
	return key
}

// Has reports whether lang (or the default) defines the message key.
func (d *Dictionary) Has(lang Language, key string) bool {
	if t, ok := d.tables[lang]; ok {
		if _, ok := t.Messages[key]; ok {
			return true
		}
	}
	if t, ok := d.tables[Default]; ok {
		_, ok := t.Messages[key]
		return ok
	}
	return false
}

// Render implements ContentDictionary.
func (d *Dictionary) Render(lang Language, key string, data any) string {
	src := d.Text(lang, key)
	cacheKey := string(lang) + "\x00" + key

	d.mu.RLock()
	tmpl, ok := d.templates[cacheKey]
	d.mu.RUnlock()
	if !ok {
		parsed, err := template.New(key).Option("missingkey=zero").Parse(src)
		if err != nil {
			slog.Error("Invalid content template", "language", lang, "key", key, "error", err)
			return src
		}
		d.mu.Lock()
		d.templates[cacheKey] = parsed
		d.mu.Unlock()
		tmpl = parsed
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.Error("Content template execution failed", "language", lang, "key", key, "error", err)
		return src
	}
	return buf.String()
}

// Keywords implements ContentDictionary.
func (d *Dictionary) Keywords(lang Language, key string) []string {
	if t, ok := d.tables[lang]; ok {
		if words, ok := t.Keywords[key]; ok {
			return words
		}
	}
	if lang != Default {
		if t, ok := d.tables[Default]; ok {
			return t.Keywords[key]
		}
	}
	return nil
}

// Groups implements ContentDictionary.
func (d *Dictionary) Groups(lang Language, prefix string) map[string][]string {
	t, ok := d.tables[lang]
	if !ok {
		t = d.tables[Default]
	}
	out := make(map[string][]string)
	if t == nil {
		return out
	}
	p := prefix + "."
	for k, words := range t.Keywords {
		if name, found := strings.CutPrefix(k, p); found {
			out[name] = words
		}
	}
	return out
}

// GroupNames returns the sorted names of Groups(lang, prefix).
func GroupNames(d ContentDictionary, lang Language, prefix string) []string {
	groups := d.Groups(lang, prefix)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Languages returns the languages that have a table, sorted.
func (d *Dictionary) Languages() []Language {
	out := make([]Language, 0, len(d.tables))
	for l := range d.tables {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
