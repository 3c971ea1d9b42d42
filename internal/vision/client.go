package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/propdocs/plan-extractor/constants"
)

type Config struct {
	BaseURL string // default "https://api.openai.com/v1"
	APIKey  string // empty disables the client
	Model   string // default "gpt-4o-mini"

	Timeout           time.Duration // per-request, default 45s
	RequestsPerSecond float64       // vision API throttle, default 1
}

// PageRenderer rasterizes document pages to PNG bytes in page order.
type PageRenderer interface {
	RenderPages(ctx context.Context, data []byte, format constants.Format, maxPages int) ([][]byte, error)
}

// StructuredRoom is a room/dimension pair the model emitted as JSON.
type StructuredRoom struct {
	Room    string  `json:"room"`
	LengthM float64 `json:"length_m"`
	WidthM  float64 `json:"width_m"`
}

// Page is one page's vision transcript plus any structured rooms.
type Page struct {
	Page  int
	Text  string
	Rooms []StructuredRoom
}

type PageFailure struct {
	Page int
	Err  error
}

type Output struct {
	Text     string // page transcripts joined with page-delimiter headers
	Pages    []Page
	Failures []PageFailure
}

// Client submits rendered pages to a vision-capable chat-completions API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	renderer   PageRenderer
	log        *slog.Logger
}

func NewClient(cfg Config, renderer PageRenderer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		renderer:   renderer,
		log:        logger,
	}
}

// Enabled reports whether a vision credential is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Transcribe renders up to maxPages pages and submits each individually for
// transcription. Per-page failures are collected; remaining pages are still
// submitted. Returns an error only when nothing could be rendered.
func (c *Client) Transcribe(ctx context.Context, data []byte, format constants.Format, maxPages int) (Output, error) {
	if !c.Enabled() {
		return Output{}, errors.New("vision: no API key configured")
	}
	imgs, err := c.renderer.RenderPages(ctx, data, format, maxPages)
	if err != nil {
		return Output{}, fmt.Errorf("render pages: %w", err)
	}

	rid := uuid.New().String()
	var out Output
	for i, img := range imgs {
		pageNo := i + 1
		if werr := c.limiter.Wait(ctx); werr != nil {
			out.Failures = append(out.Failures, PageFailure{Page: pageNo, Err: werr})
			break
		}
		txt, perr := c.transcribePage(ctx, rid, pageNo, img)
		if perr != nil {
			c.log.Warn("vision.page_failed", "req_id", rid, "page", pageNo, "error", perr)
			out.Failures = append(out.Failures, PageFailure{Page: pageNo, Err: perr})
			continue
		}
		rooms, cleaned := parseStructuredRooms(txt, c.log)
		out.Pages = append(out.Pages, Page{Page: pageNo, Text: cleaned, Rooms: rooms})
	}

	var b strings.Builder
	for _, p := range out.Pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		fmt.Fprintf(&b, "--- Page %d ---\n", p.Page)
		b.WriteString(strings.TrimSpace(p.Text))
		b.WriteString("\n\n")
	}
	out.Text = strings.TrimSpace(b.String())

	c.log.Info("vision.ok",
		"req_id", rid,
		"pages", len(out.Pages),
		"failed_pages", len(out.Failures),
		"bytes", len(out.Text),
	)
	return out, nil
}

func (c *Client) transcribePage(ctx context.Context, rid string, pageNo int, png []byte) (string, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": 0,
		"messages": []map[string]any{
			{"role": "system", "content": transcribeSystemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": transcribeUserPrompt(pageNo)},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			}},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, rid, endpoint, body)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, rid, url string, body map[string]any) ([]byte, error) {
	start := time.Now()
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("vision.http.request", "req_id", rid, "url", url, "content_length", len(bs))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("vision.http.send_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.log.Warn("vision.http.body_close_error", "req_id", rid, "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	c.log.Debug("vision.http.response", "req_id", rid, "status", resp.StatusCode,
		"bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("vision status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
