package classifier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeClassMap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "class_map.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Writing class map: %v", err)
	}
	return path
}

func TestLoadClassMap(t *testing.T) {
	path := writeClassMap(t, "index,mid,display_name\n0,/m/09x0r,Speech\n1,/m/04rlf,Music\n2,/m/028v0c,Silence\n")

	names, err := LoadClassMap(path)
	if err != nil {
		t.Fatalf("LoadClassMap failed: %v", err)
	}
	want := []string{"Speech", "Music", "Silence"}
	if len(names) != len(want) {
		t.Fatalf("Got %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestLoadClassMapMissingColumn(t *testing.T) {
	path := writeClassMap(t, "index,mid,name\n0,/m/09x0r,Speech\n")
	if _, err := LoadClassMap(path); err == nil {
		t.Error("Expected error for class map without display_name column")
	}
}

func TestLoadClassMapMissingFile(t *testing.T) {
	if _, err := LoadClassMap(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("Expected error for missing class map")
	}
}

func TestBuildMusicIndex(t *testing.T) {
	names := []string{"Speech", "Music", "Electric guitar", "Silence", "Pop music", "Dog"}
	ids := BuildMusicIndex(names)

	want := map[int]bool{1: true, 2: true, 4: true}
	if len(ids) != len(want) {
		t.Fatalf("Got %d music classes %v, want %d", len(ids), ids, len(want))
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("Index %d (%q) wrongly classified as music", id, names[id])
		}
	}
}

func TestFitWindow(t *testing.T) {
	short := []float32{1, 2, 3}
	fitted := FitWindow(short, 5)
	if len(fitted) != 5 {
		t.Fatalf("Got length %d, want 5", len(fitted))
	}
	if fitted[0] != 1 || fitted[2] != 3 || fitted[3] != 0 || fitted[4] != 0 {
		t.Errorf("Short window not zero-padded at the tail: %v", fitted)
	}

	long := []float32{1, 2, 3, 4, 5, 6}
	fitted = FitWindow(long, 4)
	if len(fitted) != 4 || fitted[3] != 4 {
		t.Errorf("Long window not truncated: %v", fitted)
	}

	exact := []float32{1, 2}
	if got := FitWindow(exact, 2); &got[0] != &exact[0] {
		t.Error("Exact-length window should be returned as-is")
	}
}

func TestLoaderAwaitMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	loader := StartLoader(filepath.Join(dir, "missing.tflite"), filepath.Join(dir, "missing.csv"))

	template, err := loader.Await(5 * time.Second)
	if template != nil {
		t.Error("Expected nil template for missing artifacts")
	}
	if !errors.Is(err, ErrModelLoad) {
		t.Errorf("Expected ErrModelLoad, got %v", err)
	}
	if !loader.Ready() {
		t.Error("Loader should report ready after the load attempt finished")
	}
}
