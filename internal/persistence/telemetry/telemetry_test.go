package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func readBack(t *testing.T, dir string) []map[string]any {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("telemetry files = %v (%v)", matches, err)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var out []map[string]any
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestWriteAppendsCompressedLines(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "events")

	if err := w.Write(map[string]any{"event": "click_batch_dropped", "count": 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(map[string]any{"event": "purchase_rejected"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readBack(t, dir)
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0]["event"] != "click_batch_dropped" {
		t.Fatalf("line 0 = %v", lines[0])
	}
	if _, ok := lines[0]["ts"]; !ok {
		t.Fatalf("line 0 missing timestamp: %v", lines[0])
	}
}

func TestWriteKeepsExistingTimestamp(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "events")
	if err := w.Write(map[string]any{"event": "x", "ts": "2025-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	lines := readBack(t, dir)
	if lines[0]["ts"] != "2025-01-01T00:00:00Z" {
		t.Fatalf("ts = %v, want caller's preserved", lines[0]["ts"])
	}
}
