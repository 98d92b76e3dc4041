// Package resume provides read-only resume snapshots for interview
// contexts. Resumes are imported once (plain text or PDF), stored, and
// served as immutable snapshots; the session engine never writes back.
package resume

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/prepflow/prepflow/internal/interview"
	"github.com/prepflow/prepflow/internal/storage"
)

// summaryLimit bounds the snapshot summary passed to remote services.
const summaryLimit = 600

// Store defines the storage operations the provider needs.
// Implemented by storage.Store.
type Store interface {
	SaveResume(rec storage.ResumeRecord) error
	GetResume(id string) (storage.ResumeRecord, error)
	ListResumes(accountID string, limit int) ([]storage.ResumeRecord, error)
}

// Provider imports resumes and serves snapshots.
type Provider struct {
	store Store
}

// NewProvider creates a Provider backed by the given store.
func NewProvider(store Store) *Provider {
	return &Provider{store: store}
}

// ImportText stores a plain-text resume and returns its record.
func (p *Provider) ImportText(accountID, name, text string) (storage.ResumeRecord, error) {
	if strings.TrimSpace(text) == "" {
		return storage.ResumeRecord{}, fmt.Errorf("resume text is empty")
	}
	rec := storage.ResumeRecord{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Name:      name,
		Text:      text,
		Source:    "text",
		CreatedAt: time.Now().UTC(),
	}
	if err := p.store.SaveResume(rec); err != nil {
		return storage.ResumeRecord{}, fmt.Errorf("saving resume: %w", err)
	}
	return rec, nil
}

// ImportPDF extracts plain text from a PDF file and stores it.
func (p *Provider) ImportPDF(accountID, name, path string) (storage.ResumeRecord, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return storage.ResumeRecord{}, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return storage.ResumeRecord{}, fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return storage.ResumeRecord{}, fmt.Errorf("reading pdf text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return storage.ResumeRecord{}, fmt.Errorf("pdf %s contains no extractable text", path)
	}

	rec := storage.ResumeRecord{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Name:      name,
		Text:      text,
		Source:    "pdf",
		CreatedAt: time.Now().UTC(),
	}
	if err := p.store.SaveResume(rec); err != nil {
		return storage.ResumeRecord{}, fmt.Errorf("saving resume: %w", err)
	}
	return rec, nil
}

// List returns the account's stored resumes, newest first.
func (p *Provider) List(accountID string, limit int) ([]storage.ResumeRecord, error) {
	return p.store.ListResumes(accountID, limit)
}

// Snapshot loads a stored resume and converts it into the immutable snapshot
// the interview context carries.
func (p *Provider) Snapshot(id string) (interview.ResumeSnapshot, error) {
	rec, err := p.store.GetResume(id)
	if err != nil {
		return interview.ResumeSnapshot{}, fmt.Errorf("loading resume %s: %w", id, err)
	}
	return BuildSnapshot(rec), nil
}

// BuildSnapshot derives a snapshot from a stored record: a bounded summary
// plus any experience entries found in the text.
func BuildSnapshot(rec storage.ResumeRecord) interview.ResumeSnapshot {
	return interview.ResumeSnapshot{
		ID:         rec.ID,
		Summary:    summarize(rec.Text),
		Experience: parseExperience(rec.Text),
		Text:       rec.Text,
	}
}

func summarize(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if len(s) <= summaryLimit {
		return s
	}
	// Cut at a word boundary.
	cut := strings.LastIndex(s[:summaryLimit], " ")
	if cut <= 0 {
		cut = summaryLimit
	}
	return s[:cut]
}

// parseExperience scans for an experience section and reads entries of the
// form "Title at Company (years)" or "Company - Title", one per line, most
// recent first. This is a best-effort scan; resumes without a recognizable
// section yield no entries.
func parseExperience(text string) []interview.Experience {
	var entries []interview.Experience
	inSection := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line == "" {
			continue
		}

		upper := strings.ToUpper(line)
		if strings.HasPrefix(upper, "EXPERIENCE") || strings.HasPrefix(upper, "WORK EXPERIENCE") || strings.HasPrefix(upper, "EMPLOYMENT") {
			inSection = true
			continue
		}
		if inSection && looksLikeHeader(upper) {
			break
		}
		if !inSection {
			continue
		}

		if e, ok := parseExperienceLine(line); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// looksLikeHeader reports whether a line starts a new resume section.
func looksLikeHeader(upper string) bool {
	for _, h := range []string{"EDUCATION", "SKILLS", "PROJECTS", "CERTIFICATIONS", "AWARDS"} {
		if strings.HasPrefix(upper, h) {
			return true
		}
	}
	return false
}

func parseExperienceLine(line string) (interview.Experience, bool) {
	years := ""
	if open := strings.LastIndex(line, "("); open >= 0 && strings.HasSuffix(line, ")") {
		years = strings.TrimSpace(line[open+1 : len(line)-1])
		line = strings.TrimSpace(line[:open])
	}

	if idx := strings.Index(line, " at "); idx > 0 {
		return interview.Experience{
			Title:   strings.TrimSpace(line[:idx]),
			Company: strings.TrimSpace(line[idx+4:]),
			Years:   years,
		}, true
	}
	if idx := strings.Index(line, " - "); idx > 0 {
		return interview.Experience{
			Company: strings.TrimSpace(line[:idx]),
			Title:   strings.TrimSpace(line[idx+3:]),
			Years:   years,
		}, true
	}
	return interview.Experience{}, false
}
