package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
)

// FormData is a multipart form: ordered text fields plus file parts
type FormData struct {
	fields []formField
	files  []formFile
}

type formField struct {
	name  string
	value string
}

type formFile struct {
	field    string
	filename string
	content  io.Reader
}

func NewFormData() *FormData {
	return &FormData{}
}

// Add appends a text field
func (f *FormData) Add(name, value string) *FormData {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// AddFile appends a file part. content is read once, when the form is sent.
func (f *FormData) AddFile(field, filename string, content io.Reader) *FormData {
	f.files = append(f.files, formFile{field: field, filename: filename, content: content})
	return f
}

// Names lists the field and file names in the order they were added (used for logging)
func (f *FormData) Names() []string {
	names := make([]string, 0, len(f.fields)+len(f.files))
	for _, fld := range f.fields {
		names = append(names, fld.name)
	}
	for _, file := range f.files {
		names = append(names, file.field)
	}
	return names
}

func (f *FormData) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, fld := range f.fields {
		if err := w.WriteField(fld.name, fld.value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", fld.name, err)
		}
	}

	for _, file := range f.files {
		contentType := mime.TypeByExtension(filepath.Ext(file.filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, filepath.Base(file.filename)))
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating part %s: %w", file.field, err)
		}
		if _, err := io.Copy(part, file.content); err != nil {
			return nil, "", fmt.Errorf("copying file %s: %w", file.filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// UploadFormData sends form as multipart/form-data to endpoint.
// method "put" (any case) sends a PUT, anything else a POST.
func (c *Client) UploadFormData(ctx context.Context, endpoint string, form *FormData, method string) (*Response, error) {
	httpMethod := http.MethodPost
	if strings.EqualFold(method, http.MethodPut) {
		httpMethod = http.MethodPut
	}
	if form == nil {
		form = NewFormData()
	}

	body, contentType, err := form.encode()
	if err != nil {
		return nil, newInternalError(err, "encoding form data for "+endpoint)
	}

	opts := &RequestOptions{}
	req, err := c.newRequest(ctx, httpMethod, endpoint, body, opts)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("sending form data",
		slog.String("component", "client.UploadFormData"),
		slog.String("method", httpMethod),
		slog.String("url", c.baseURL+endpoint),
		slog.Any("fields", form.Names()),
	)

	res, err := c.do(req, endpoint, opts)
	if err != nil {
		c.logger.Error("form upload failed",
			slog.String("component", "client.UploadFormData"),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return res, nil
}
