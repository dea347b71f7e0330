package logutil

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupAtWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	prev := log.Writer()
	defer log.SetOutput(prev)

	SetupAt(dir, true)
	log.Printf("EXPORT: hello")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "EXPORT: hello") {
		t.Errorf("log file = %q", data)
	}
}

func TestRotationShiftsArchives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logFileName)
	big := bytes.Repeat([]byte("x"), maxSizeBytes+1)
	if err := os.WriteFile(path, big, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archiveName(path, 1), []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := openRotating(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.f.Close()
	if _, err := w.Write([]byte("fresh\n")); err != nil {
		t.Fatal(err)
	}

	if data, _ := os.ReadFile(archiveName(path, 2)); string(data) != "old" {
		t.Errorf("archive .2 = %q, want previous .1", data)
	}
	if st, err := os.Stat(archiveName(path, 1)); err != nil || st.Size() != int64(len(big)) {
		t.Errorf("archive .1 missing or wrong size: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "fresh\n" {
		t.Errorf("current log = %q", data)
	}
}
