// Package export renders a note as HTML and hands it to an external
// HTML-to-PDF rendering service. The note plaintext leaves the client here;
// the endpoint is user-configured and trusted by configuration.
package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/dbrusnev/notelock/internal/client/models"
)

const defaultTimeout = 30 * time.Second

var noteTemplate = template.Must(template.New("note").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p style="white-space: pre-wrap">{{.Content}}</p>
<footer><small>{{.CreatedAt.Format "2006-01-02 15:04"}}</small></footer>
</body>
</html>
`))

type Client struct {
	endpoint string
	hc       *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: defaultTimeout},
	}
}

// NotePDF renders the note to HTML and posts it to the rendering service,
// returning the PDF bytes.
func (c *Client) NotePDF(ctx context.Context, note models.Note) ([]byte, error) {
	var buf bytes.Buffer
	if err := noteTemplate.Execute(&buf, note); err != nil {
		return nil, fmt.Errorf("rendering note: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("export service: unexpected status %s", resp.Status)
	}
	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("export service: reading response: %w", err)
	}
	return pdf, nil
}
