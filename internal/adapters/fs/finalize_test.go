package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFinalizeBucket_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "12.nmea")
	if err := os.WriteFile(path, []byte("payload\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := FinalizeBucket(path); err != nil {
		t.Fatalf("FinalizeBucket() error = %v", err)
	}
	sumBefore, err := os.ReadFile(path + ".zst.sha256")
	if err != nil {
		t.Fatalf("reading checksum: %v", err)
	}

	// Second run over finished artifacts changes nothing.
	if err := FinalizeBucket(path); err != nil {
		t.Fatalf("FinalizeBucket() repeat error = %v", err)
	}
	sumAfter, err := os.ReadFile(path + ".zst.sha256")
	if err != nil {
		t.Fatalf("reading checksum: %v", err)
	}
	if string(sumBefore) != string(sumAfter) {
		t.Errorf("checksum rewritten: %q -> %q", sumBefore, sumAfter)
	}
}

func TestFinalizeBucket_CleansUpCrashLeftover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "12.ubx")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := FinalizeBucket(path); err != nil {
		t.Fatalf("FinalizeBucket() error = %v", err)
	}

	// Simulate a crash after checksumming but before source removal.
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := FinalizeBucket(path); err != nil {
		t.Fatalf("FinalizeBucket() recovery error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("source still present, stat err = %v", err)
	}
}

func TestVerifyBucket_DetectsTamper(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "12.nmea")
	if err := os.WriteFile(path, []byte("payload\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := FinalizeBucket(path); err != nil {
		t.Fatalf("FinalizeBucket() error = %v", err)
	}

	zstPath := path + ".zst"
	if err := VerifyBucket(zstPath); err != nil {
		t.Fatalf("VerifyBucket() on intact archive error = %v", err)
	}

	f, err := os.OpenFile(zstPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte{0x00}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := VerifyBucket(zstPath); err == nil {
		t.Error("VerifyBucket() on tampered archive = nil, want error")
	}
}

func TestUncompressedBuckets_OldestFirst(t *testing.T) {
	root := t.TempDir()
	mk := func(parts ...string) string {
		path := filepath.Join(append([]string{root}, parts...)...)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	third := mk("2026", "03", "02", "00.nmea")
	first := mk("2026", "03", "01", "10.ubx")
	second := mk("2026", "03", "01", "11.nmea")
	mk("2026", "03", "01", "09.nmea.zst") // finalized, excluded

	got, err := UncompressedBuckets(root)
	if err != nil {
		t.Fatalf("UncompressedBuckets() error = %v", err)
	}
	want := []string{first, second, third}
	if len(got) != len(want) {
		t.Fatalf("buckets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("buckets[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestUncompressedBuckets_MissingRoot(t *testing.T) {
	got, err := UncompressedBuckets(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("UncompressedBuckets() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("buckets = %v, want empty", got)
	}
}
