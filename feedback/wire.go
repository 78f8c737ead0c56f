package feedback

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"

	"github.com/vgarvardt/fidebe/envinfo"
)

// Multipart form field names of a submission.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldText      = "text"
	FieldImages    = "images"
	FieldURL       = "url"
	FieldUserAgent = "userAgent"
	FieldPlatform  = "platform"
	FieldEnv       = "env"
	FieldClient    = "client"
	FieldLogs      = "logs"
	FieldLabels    = "labels"
)

// DefaultMaxMemory is the part of a multipart body Decode keeps in memory, the rest goes to temporary files.
const DefaultMaxMemory = 32 << 20

// ErrMalformed is returned by Decode when the request is not a submission.
var ErrMalformed = errors.New("malformed submission")

// Encode writes the submission as a multipart form and returns the body with its content type.
func Encode(s *Submission) (*bytes.Buffer, string, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	fields := [][2]string{
		{FieldID, s.ID},
		{FieldCreatedAt, s.CreatedAt.UTC().Format(time.RFC3339Nano)},
		{FieldText, s.Text},
	}
	if s.Client != nil {
		fields = append(fields,
			[2]string{FieldURL, s.Client.Page.URL},
			[2]string{FieldUserAgent, s.Client.UserAgent},
			[2]string{FieldPlatform, s.Client.Platform},
		)
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("could not write field %q: %w", f[0], err)
		}
	}

	for _, a := range s.Attachments {
		if err := writeAttachment(w, a); err != nil {
			return nil, "", err
		}
	}

	jsonFields := []struct {
		name  string
		value any
		skip  bool
	}{
		{FieldEnv, s.Env, s.Env == nil},
		{FieldClient, s.Client, s.Client == nil},
		{FieldLogs, s.Logs, s.Logs == nil},
		{FieldLabels, s.Labels, len(s.Labels) == 0},
	}
	for _, f := range jsonFields {
		if f.skip {
			continue
		}
		data, err := json.Marshal(f.value)
		if err != nil {
			return nil, "", fmt.Errorf("could not encode field %q: %w", f.name, err)
		}
		if err := w.WriteField(f.name, string(data)); err != nil {
			return nil, "", fmt.Errorf("could not write field %q: %w", f.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("could not finish multipart body: %w", err)
	}
	return body, w.FormDataContentType(), nil
}

func writeAttachment(w *multipart.Writer, a Attachment) error {
	contentType := a.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(a.Data)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     FieldImages,
		"filename": a.Name,
	}))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("could not create attachment part %q: %w", a.Name, err)
	}
	if _, err := part.Write(a.Data); err != nil {
		return fmt.Errorf("could not write attachment %q: %w", a.Name, err)
	}
	return nil
}

// Decode reads a submission from a multipart request.
//
// Only text is required to be present, possibly empty. A request without the client field
// gets its client context from the url, userAgent and platform fields and the request headers,
// which is what a bare browser widget sends. A request without an ID gets a fresh one.
func Decode(r *http.Request, maxMemory int64) (_ *Submission, err error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	form := r.MultipartForm
	defer func() {
		// the caller cleans up only after a successful decode
		if err != nil {
			_ = form.RemoveAll()
		}
	}()

	if _, ok := form.Value[FieldText]; !ok {
		return nil, fmt.Errorf("%w: missing %q field", ErrMalformed, FieldText)
	}

	s := &Submission{
		ID:   formValue(form, FieldID),
		Text: formValue(form, FieldText),
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	s.CreatedAt = time.Now().UTC()
	if raw := formValue(form, FieldCreatedAt); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad %q field: %w", ErrMalformed, FieldCreatedAt, err)
		}
		s.CreatedAt = t
	}

	for _, f := range []struct {
		name string
		dst  any
	}{
		{FieldEnv, &s.Env},
		{FieldClient, &s.Client},
		{FieldLogs, &s.Logs},
		{FieldLabels, &s.Labels},
	} {
		raw := formValue(form, f.name)
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), f.dst); err != nil {
			return nil, fmt.Errorf("%w: bad %q field: %w", ErrMalformed, f.name, err)
		}
	}

	if s.Client == nil {
		c := envinfo.FromRequest(r)
		if v := formValue(form, FieldURL); v != "" {
			c.Page.URL = v
		}
		if v := formValue(form, FieldUserAgent); v != "" {
			c.UserAgent = v
		}
		if v := formValue(form, FieldPlatform); v != "" {
			c.Platform = v
		}
		s.Client = &c
	}

	for _, fh := range form.File[FieldImages] {
		a, err := readAttachment(fh)
		if err != nil {
			return nil, err
		}
		s.Attachments = append(s.Attachments, a)
	}

	return s, nil
}

func readAttachment(fh *multipart.FileHeader) (Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return Attachment{}, fmt.Errorf("could not open attachment %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Attachment{}, fmt.Errorf("could not read attachment %q: %w", fh.Filename, err)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return Attachment{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}

func formValue(form *multipart.Form, name string) string {
	if vs := form.Value[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}
