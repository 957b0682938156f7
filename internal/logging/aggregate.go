package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed line of bridge.log.
type Entry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Feature   string         `json:"feature,omitempty"`
	Query     string         `json:"query,omitempty"`
	Frame     uint64         `json:"frame,omitempty"`
	HasFrame  bool           `json:"-"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Filter selects entries. Zero fields match everything; set fields are
// combined with AND.
type Filter struct {
	// Level keeps entries at or above this level.
	Level string
	Since time.Time
	Until time.Time
	// Feature matches the feature attribute exactly.
	Feature string
	// Query matches the query token, as printed by native.Handle.String.
	Query           string
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadEntries parses bridge.log and its rotated backups in logDir.
// Unparseable lines are skipped. Entries are sorted by timestamp.
func ReadEntries(logDir string) ([]Entry, error) {
	base := filepath.Join(logDir, FileName)
	paths, _ := filepath.Glob(base + ".*")
	paths = append(paths, base)

	var entries []Entry
	found := false
	for _, path := range paths {
		got, err := readFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		entries = append(entries, got...)
	}
	if !found {
		return nil, fmt.Errorf("no log file found in %s", logDir)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func readFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	const maxScanTokenSize = 1024 * 1024
	scanner.Buffer(make([]byte, maxScanTokenSize), maxScanTokenSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return entries, nil
}

var standardFields = map[string]bool{
	"time": true, "level": true, "msg": true,
	"feature": true, "query": true, "frame": true,
}

func parseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := Entry{Attrs: make(map[string]any)}
	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Timestamp = t
		}
	}
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	entry.Feature, _ = raw["feature"].(string)
	entry.Query, _ = raw["query"].(string)
	if f, ok := raw["frame"].(float64); ok && f >= 0 {
		entry.Frame = uint64(f)
		entry.HasFrame = true
	}

	for k, v := range raw {
		if !standardFields[k] {
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// Apply returns the entries matching f.
func (f Filter) Apply(entries []Entry) []Entry {
	if f == (Filter{}) {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f Filter) matches(e Entry) bool {
	if f.Level != "" {
		want, okWant := levelOrder[strings.ToUpper(f.Level)]
		got, okGot := levelOrder[e.Level]
		if okWant && okGot && got < want {
			return false
		}
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.Feature != "" && e.Feature != f.Feature {
		return false
	}
	if f.Query != "" && e.Query != f.Query {
		return false
	}
	if f.MessageContains != "" && !strings.Contains(e.Message, f.MessageContains) {
		return false
	}
	return true
}

// WriteText renders entries one per line:
//
//	[15:04:05.000] WARN - poll failed (feature=barcode, query=0x2a, frame=7) {"code":"Timeout"}
func WriteText(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		parts := []string{
			fmt.Sprintf("[%s]", e.Timestamp.Format("15:04:05.000")),
			e.Level, "-", e.Message,
		}

		var ctx []string
		if e.Feature != "" {
			ctx = append(ctx, "feature="+e.Feature)
		}
		if e.Query != "" {
			ctx = append(ctx, "query="+e.Query)
		}
		if e.HasFrame {
			ctx = append(ctx, fmt.Sprintf("frame=%d", e.Frame))
		}
		if len(ctx) > 0 {
			parts = append(parts, "("+strings.Join(ctx, ", ")+")")
		}

		if len(e.Attrs) > 0 {
			b, _ := json.Marshal(e.Attrs)
			parts = append(parts, string(b))
		}

		if _, err := io.WriteString(w, strings.Join(parts, " ")+"\n"); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	return nil
}

// WriteJSON renders entries as an indented JSON array.
func WriteJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
