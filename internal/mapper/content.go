package mapper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strconv"
	"strings"

	"gateway-proxy-go/internal/model"
)

const multipartFormData = "multipart/form-data"

// mapContent decides which body, if any, the outbound request carries.
// It returns a nil Content when the inbound request has no body.
func (m *RequestMapper) mapContent(ctx context.Context, in *model.InboundRequest) (model.Content, error) {
	if in.Body == nil && !in.HasDeclaredLength() && len(headerValues(in.Header, "Transfer-Encoding")) == 0 {
		return nil, nil
	}

	if isMultipart(in.ContentType) {
		content, err := m.mapMultipart(ctx, in)
		if err != nil {
			return nil, err
		}
		return content, nil
	}

	var content model.Content
	if in.ContentLength == 0 {
		content = model.NewEmptyContent()
	} else {
		var body io.ReadCloser
		if in.Body != nil {
			body = &contextReader{ctx: ctx, body: in.Body}
		}
		content = model.NewStreamContent(body, max(in.ContentLength, -1))
	}

	if in.ContentType != "" {
		content.Header()["Content-Type"] = []string{in.ContentType}
	}
	m.copyContentHeaders(in.Header, content.Header(), nil)
	return content, nil
}

// copyContentHeaders copies the policy's content headers from src onto dst,
// skipping the names in skip.
func (m *RequestMapper) copyContentHeaders(src, dst http.Header, skip []string) {
	for _, name := range m.policy.contentHeaders {
		if slices.Contains(skip, name) {
			continue
		}
		if vals := headerValues(src, name); len(vals) > 0 {
			dst[name] = append([]string(nil), vals...)
		}
	}
}

func isMultipart(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), multipartFormData)
}

// mapMultipart rebuilds a multipart/form-data body from the parsed form.
// File parts are read fully into memory; the inbound boundary is reused when
// it is valid so the original Content-Type stays accurate.
func (m *RequestMapper) mapMultipart(ctx context.Context, in *model.InboundRequest) (*model.MultipartContent, error) {
	boundary := multipartBoundary(in.ContentType)

	form := in.Form
	if form == nil && in.Body != nil && in.ContentLength != 0 {
		parsed, err := m.readForm(in.Body, boundary)
		if err != nil {
			return nil, err
		}
		defer func() { _ = parsed.RemoveAll() }()
		form = parsed
	}

	parts, err := collectParts(ctx, form)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if boundary != "" {
		// An invalid inbound boundary falls back to the writer's random one.
		_ = w.SetBoundary(boundary)
	}
	for _, p := range parts {
		if err := writePart(w, p); err != nil {
			return nil, fmt.Errorf("encode multipart body: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("encode multipart body: %w", err)
	}

	content := model.NewMultipartContent(parts, buf.Bytes())
	h := content.Header()
	h["Content-Type"] = []string{w.FormDataContentType()}
	h["Content-Length"] = []string{strconv.Itoa(buf.Len())}
	m.copyContentHeaders(in.Header, h, []string{"Content-Length"})
	return content, nil
}

func (m *RequestMapper) readForm(body io.Reader, boundary string) (*multipart.Form, error) {
	if boundary == "" {
		return nil, fmt.Errorf("%w: multipart content type has no boundary", ErrBodyRead)
	}
	form, err := multipart.NewReader(body, boundary).ReadForm(m.multipartMaxMemory)
	if err != nil {
		return nil, fmt.Errorf("%w: parse multipart form: %w", ErrBodyRead, err)
	}
	return form, nil
}

// collectParts lists file parts first, then plain fields, each ordered by
// field name.
func collectParts(ctx context.Context, form *multipart.Form) ([]model.FormPart, error) {
	if form == nil {
		return nil, nil
	}

	var parts []model.FormPart
	for _, name := range slices.Sorted(maps.Keys(form.File)) {
		for _, fh := range form.File[name] {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrBodyRead, err)
			}
			data, err := readFile(fh)
			if err != nil {
				return nil, fmt.Errorf("%w: file %q: %w", ErrBodyRead, fh.Filename, err)
			}
			parts = append(parts, model.FormPart{
				Name:        name,
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	for _, name := range slices.Sorted(maps.Keys(form.Value)) {
		for _, v := range form.Value[name] {
			parts = append(parts, model.FormPart{Name: name, Data: []byte(v)})
		}
	}
	return parts, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writePart(w *multipart.Writer, p model.FormPart) error {
	if !p.IsFile() {
		return w.WriteField(p.Name, string(p.Data))
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(p.Name), quoteEscaper.Replace(p.FileName)))
	ct := p.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = pw.Write(p.Data)
	return err
}

func multipartBoundary(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["boundary"]
}

// contextReader fails reads once ctx is done so an aborted client connection
// does not leave the downstream transfer hanging.
type contextReader struct {
	ctx  context.Context
	body io.ReadCloser
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBodyRead, err)
	}
	n, err := r.body.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: %w", ErrBodyRead, err)
	}
	return n, err
}

func (r *contextReader) Close() error {
	return r.body.Close()
}
