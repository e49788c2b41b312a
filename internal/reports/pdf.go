package reports

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/daftar-erp/daftar-erp/web"
)

// Renderer converts report HTML into PDF documents via Gotenberg.
type Renderer struct {
	baseURL    string
	httpClient *http.Client
	templates  *template.Template
}

// NewRenderer constructs a Renderer against the given Gotenberg base URL.
func NewRenderer(baseURL string) (*Renderer, error) {
	tmpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse report templates: %w", err)
	}
	return &Renderer{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		templates: tmpl,
	}, nil
}

// Ping checks if the remote Gotenberg service is available.
func (r *Renderer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", r.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

// TrialBalancePDF renders the grouped trial balance as a PDF document.
func (r *Renderer) TrialBalancePDF(ctx context.Context, tb TrialBalance) ([]byte, error) {
	var html bytes.Buffer
	if err := r.templates.ExecuteTemplate(&html, "trialbalance.html", tb); err != nil {
		return nil, err
	}
	return r.renderHTML(ctx, html.Bytes())
}

func (r *Renderer) renderHTML(ctx context.Context, html []byte) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(html); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/forms/chromium/convert/html", r.baseURL), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("render failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
