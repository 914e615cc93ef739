package screen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"civicconnect.org/internal/media"
	"civicconnect.org/internal/report"
)

// ErrSubmitting rejects a second submission while one is in flight.
var ErrSubmitting = errors.New("a report is already being submitted")

const MsgUploadFailed = "Failed to upload media"

// Creator stores a draft; *repository.Repository satisfies it.
type Creator interface {
	Create(ctx context.Context, d report.Draft) (report.Report, error)
}

// Attachment is a photo picked for upload.
type Attachment struct {
	ContentType string
	Body        io.Reader
}

// ReportForm collects a draft, uploads its photos and submits it.
type ReportForm struct {
	repo    Creator
	storage media.Storage
	notify  interface{ Error(string) }

	mu         sync.Mutex
	submitting bool
}

// NewReportForm builds a form. storage may be nil when uploads are unavailable.
func NewReportForm(repo Creator, storage media.Storage, notify interface{ Error(string) }) *ReportForm {
	return &ReportForm{repo: repo, storage: storage, notify: notify}
}

func (f *ReportForm) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Submit uploads attachments, then creates the report with their URLs.
func (f *ReportForm) Submit(ctx context.Context, d report.Draft, files []Attachment) (report.Report, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return report.Report{}, ErrSubmitting
	}
	f.submitting = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	if d.Priority == "" {
		d.Priority = report.PriorityMedium
	}
	if len(files) > 0 && f.storage == nil {
		return report.Report{}, errors.New("media uploads are not available")
	}
	for i, file := range files {
		url, err := f.storage.Put(ctx, media.DefaultFolder, file.ContentType, file.Body)
		if err != nil {
			if f.notify != nil {
				f.notify.Error(MsgUploadFailed)
			}
			return report.Report{}, fmt.Errorf("upload attachment %d: %w", i+1, err)
		}
		d.MediaURLs = append(d.MediaURLs, url)
	}
	return f.repo.Create(ctx, d)
}
