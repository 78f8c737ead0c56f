// Package feedback defines a feedback submission, the way it travels over HTTP and the sinks it is sent to.
package feedback

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vgarvardt/fidebe/console"
	"github.com/vgarvardt/fidebe/envinfo"
)

// An Attachment is a file attached to the report, usually a screenshot.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// AttachmentFromFile reads the file into an attachment, content type is sniffed from the data.
func AttachmentFromFile(path string) (Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("could not read attachment: %w", err)
	}
	return Attachment{Name: filepath.Base(path), ContentType: http.DetectContentType(data), Data: data}, nil
}

// A Report is what the user hands in: the description and optional attachments.
// Client is the browser context, if the report came from one.
type Report struct {
	Text        string
	Attachments []Attachment
	Client      *envinfo.Client
}

// Logs is the console snapshot attached to a submission.
type Logs struct {
	Count   int             `json:"count"`
	Entries []console.Entry `json:"entries"`
}

// LogsFrom wraps the snapshot for a submission.
func LogsFrom(s console.Snapshot) *Logs {
	entries := s.Logs
	if entries == nil {
		entries = []console.Entry{}
	}
	return &Logs{Count: len(entries), Entries: entries}
}

// A Submission is a report together with the collected diagnostic context.
type Submission struct {
	ID          string
	CreatedAt   time.Time
	Text        string
	Attachments []Attachment
	Env         *envinfo.Info
	Client      *envinfo.Client
	Logs        *Logs
	Labels      map[string]string
}

// NewSubmission creates a submission for the report with a fresh ID.
func NewSubmission(r Report) *Submission {
	return &Submission{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Text:        r.Text,
		Attachments: r.Attachments,
		Client:      r.Client,
	}
}

// A Sink delivers submissions.
type Sink interface {
	Send(ctx context.Context, s *Submission) error
}

// SinkFunc is an adapter to allow the use of ordinary functions as sinks.
type SinkFunc func(ctx context.Context, s *Submission) error

// Send calls f(ctx, s).
func (f SinkFunc) Send(ctx context.Context, s *Submission) error {
	return f(ctx, s)
}
