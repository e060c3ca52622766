package utilities

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateLogAppendsDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local)

	if err := createLogAt(now, dir, "TEST", "first"); err != nil {
		t.Fatalf("createLogAt: %v", err)
	}
	if err := createLogAt(now, dir, "TEST", "second"); err != nil {
		t.Fatalf("createLogAt: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "TEST_20240309.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "14:05:06 - first\n14:05:06 - second\n"
	if string(data) != want {
		t.Fatalf("log = %q, want %q", data, want)
	}
}

func TestHexDump(t *testing.T) {
	dir := t.TempDir()
	if err := HexDump(dir, "356307042441013", "10.0.0.1:4000", false, []byte{0x08, 0xab}); err != nil {
		t.Fatalf("HexDump: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "HEXDUMP_*.log"))
	if len(matches) != 1 {
		t.Fatalf("dump files = %v", matches)
	}
	data, _ := os.ReadFile(matches[0])
	if !strings.Contains(string(data), "imei=356307042441013") || !strings.Contains(string(data), "crc_ok=false payload=08AB") {
		t.Fatalf("dump = %q", data)
	}
}
