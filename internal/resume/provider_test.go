package resume

import (
	"strings"
	"testing"

	"github.com/prepflow/prepflow/internal/storage"
)

const sampleResume = `Jane Doe
Senior Backend Engineer

EXPERIENCE
- Staff Engineer at Initech (2021-2024)
- Globex - Backend Engineer
- just some prose that is not an entry

EDUCATION
BSc Computer Science
`

func TestParseExperience(t *testing.T) {
	entries := parseExperience(sampleResume)

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	first := entries[0]
	if first.Company != "Initech" || first.Title != "Staff Engineer" || first.Years != "2021-2024" {
		t.Errorf("first entry = %+v", first)
	}
	second := entries[1]
	if second.Company != "Globex" || second.Title != "Backend Engineer" {
		t.Errorf("second entry = %+v", second)
	}
}

func TestParseExperienceStopsAtNextSection(t *testing.T) {
	text := "EXPERIENCE\nDev at Acme\nEDUCATION\nTeacher at School\n"
	entries := parseExperience(text)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (education must not leak in)", len(entries))
	}
}

func TestParseExperienceNoSection(t *testing.T) {
	if entries := parseExperience("no structure here\nDev at Acme"); len(entries) != 0 {
		t.Errorf("entries without an experience section = %+v, want none", entries)
	}
}

func TestSummarizeBounded(t *testing.T) {
	long := strings.Repeat("word ", 400)
	got := summarize(long)
	if len(got) > summaryLimit {
		t.Errorf("summary length = %d, want <= %d", len(got), summaryLimit)
	}
	if strings.HasSuffix(got, " ") {
		t.Error("summary should cut at a word boundary without trailing space")
	}
}

func TestBuildSnapshot(t *testing.T) {
	rec := storage.ResumeRecord{ID: "r1", Text: sampleResume}
	snap := BuildSnapshot(rec)

	if snap.ID != "r1" {
		t.Errorf("snapshot ID = %q", snap.ID)
	}
	if snap.Empty() {
		t.Error("snapshot of a real resume should not be empty")
	}
	if len(snap.Experience) == 0 || snap.Experience[0].Company != "Initech" {
		t.Errorf("most recent employer = %+v, want Initech first", snap.Experience)
	}
}

type fakeStore struct {
	saved []storage.ResumeRecord
}

func (f *fakeStore) SaveResume(rec storage.ResumeRecord) error {
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeStore) GetResume(id string) (storage.ResumeRecord, error) {
	for _, r := range f.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return storage.ResumeRecord{}, storage.ErrNotFound
}

func (f *fakeStore) ListResumes(accountID string, limit int) ([]storage.ResumeRecord, error) {
	return f.saved, nil
}

func TestImportTextAndSnapshot(t *testing.T) {
	store := &fakeStore{}
	p := NewProvider(store)

	rec, err := p.ImportText("acct", "cv.txt", sampleResume)
	if err != nil {
		t.Fatalf("ImportText: %v", err)
	}
	if rec.Source != "text" || rec.ID == "" {
		t.Errorf("unexpected record %+v", rec)
	}

	snap, err := p.Snapshot(rec.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Summary == "" {
		t.Error("snapshot summary should not be empty")
	}
}

func TestImportTextRejectsEmpty(t *testing.T) {
	p := NewProvider(&fakeStore{})
	if _, err := p.ImportText("acct", "cv.txt", "   \n"); err == nil {
		t.Error("expected error for empty resume")
	}
}
