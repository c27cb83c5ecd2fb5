package storagekey

import (
	"errors"
	"strings"
	"testing"
)

func TestForUploadContainsOrgAndFileName(t *testing.T) {
	key, err := ForUpload(42, "vacation.png", 7)
	if err != nil {
		t.Fatalf("ForUpload returned error: %v", err)
	}
	if !strings.HasPrefix(key, "orgs/42/7/") {
		t.Fatalf("expected orgs/42/7/ prefix, got %q", key)
	}
	if !strings.HasSuffix(key, "-vacation.png") {
		t.Fatalf("expected file name suffix, got %q", key)
	}
}

func TestForUploadOmitsUploaderSegment(t *testing.T) {
	key, err := ForUpload(42, "doc.pdf", 0)
	if err != nil {
		t.Fatalf("ForUpload returned error: %v", err)
	}
	if !strings.HasPrefix(key, "orgs/42/") {
		t.Fatalf("expected orgs/42/ prefix, got %q", key)
	}
	if got := strings.Count(key, "/"); got != 2 {
		t.Fatalf("expected 2 separators without uploader segment, got %d in %q", got, key)
	}
}

func TestForUploadIsUniqueAcrossCalls(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := ForUpload(1, "same.jpg", 1)
		if err != nil {
			t.Fatalf("ForUpload returned error: %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key issued: %q", key)
		}
		seen[key] = true
	}
}

func TestForUploadRejectsPathSeparators(t *testing.T) {
	for _, name := range []string{"../etc/passwd", "a/b.png", `a\b.png`} {
		if _, err := ForUpload(1, name, 1); !errors.Is(err, ErrUnsafeFileName) {
			t.Fatalf("ForUpload(%q): expected ErrUnsafeFileName, got %v", name, err)
		}
	}
	if _, err := ForUpload(1, "", 1); !errors.Is(err, ErrEmptyFileName) {
		t.Fatalf("expected ErrEmptyFileName, got %v", err)
	}
}

func TestForThumbnail(t *testing.T) {
	got, err := ForThumbnail("orgs/1/42/1700000000-ab12-cat.png", "small")
	if err != nil {
		t.Fatalf("ForThumbnail returned error: %v", err)
	}
	want := "orgs/1/42/thumbnails/1700000000-ab12-cat-small.jpg"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestForThumbnailIsDeterministic(t *testing.T) {
	first, err := ForThumbnail("orgs/9/file.webp", "medium")
	if err != nil {
		t.Fatalf("ForThumbnail returned error: %v", err)
	}
	second, err := ForThumbnail("orgs/9/file.webp", "medium")
	if err != nil {
		t.Fatalf("ForThumbnail returned error: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic output, got %q and %q", first, second)
	}
}

func TestForThumbnailWithoutExtension(t *testing.T) {
	got, err := ForThumbnail("orgs/1/raw-blob", "large")
	if err != nil {
		t.Fatalf("ForThumbnail returned error: %v", err)
	}
	if got != "orgs/1/thumbnails/raw-blob-large.jpg" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestForThumbnailRejectsEmptyInputs(t *testing.T) {
	if _, err := ForThumbnail("", "small"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := ForThumbnail("orgs/1/a.png", ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestBelongsTo(t *testing.T) {
	key, err := ForUpload(7, "cat.png", 42)
	if err != nil {
		t.Fatalf("ForUpload: %v", err)
	}

	if !BelongsTo(key, 7) {
		t.Fatalf("expected %q to belong to org 7", key)
	}
	if BelongsTo(key, 70) {
		t.Fatalf("key %q must not match org 70", key)
	}
	if BelongsTo("orgs/70-other/file.png", 70) {
		t.Fatal("prefix match must be segment-exact")
	}
}
