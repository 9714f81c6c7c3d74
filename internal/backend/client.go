package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config configures the dubbing backend client.
type Config struct {
	BaseURL        string
	TimeoutSeconds int // default 300; pipeline runs are slow
	Logger         *logrus.Logger
}

// Client talks to the external dubbing backend over HTTP. One attempt per
// call; the caller decides whether an action is worth repeating.
type Client struct {
	base string
	c    *http.Client
	log  *logrus.Entry
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Client{
		base: cfg.BaseURL,
		c:    &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:  cfg.Logger.WithField("component", "backend"),
	}
}

// Dub uploads a source audio file with processing settings and returns the
// full pipeline result: texts, sentence timeline, and audio references.
func (c *Client) Dub(ctx context.Context, audioPath string, settings Settings) (*DubResult, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	if err := w.WriteField("settings", string(settingsJSON)); err != nil {
		return nil, fmt.Errorf("write settings field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/dub", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.log.WithField("file", filepath.Base(audioPath)).Info("submitting audio for dubbing")

	var out DubResult
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("dub: %w", err)
	}
	return &out, nil
}

// Download fetches a server-generated audio artifact by filename.
func (c *Client) Download(ctx context.Context, filename string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(filename), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download %s: %s: %s", filename, resp.Status, truncate(b, 200))
	}
	return io.ReadAll(resp.Body)
}

// DownloadURL returns the absolute URL of a server-generated artifact.
func (c *Client) DownloadURL(filename string) string {
	return c.base + "/api/download/" + url.PathEscape(filename)
}

// AbsoluteURL resolves a backend-relative audio URL (e.g. "/api/download/x.wav")
// against the client's base. Already-absolute URLs pass through unchanged.
func (c *Client) AbsoluteURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		return c.base + "/" + u
	}
	return c.base + u
}

// Export asks the backend to render the final mixed audio from the current
// sentence edits.
func (c *Client) Export(ctx context.Context, sentences []ExportSentence, referenceAudioPath string) (*ExportResult, error) {
	payload := struct {
		Sentences          []ExportSentence `json:"sentences"`
		ReferenceAudioPath string           `json:"reference_audio_path"`
	}{Sentences: sentences, ReferenceAudioPath: referenceAudioPath}

	var out ExportResult
	if err := c.postJSON(ctx, "/api/export", payload, &out); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("export: backend reported failure: %s", out.Error)
	}
	return &out, nil
}

// RefineDialogue requests an AI text refinement for one sentence.
func (c *Client) RefineDialogue(ctx context.Context, r RefineRequest) (*RefineResult, error) {
	var out RefineResult
	if err := c.postJSON(ctx, "/api/refine-dialogue", r, &out); err != nil {
		return nil, fmt.Errorf("refine dialogue: %w", err)
	}
	return &out, nil
}

// ReprocessSentence requests audio resynthesis for a refined sentence.
func (c *Client) ReprocessSentence(ctx context.Context, r ReprocessRequest) (*ReprocessResult, error) {
	var wire reprocessWire
	if err := c.postJSON(ctx, "/api/reprocess-sentence", r, &wire); err != nil {
		return nil, fmt.Errorf("reprocess sentence: %w", err)
	}
	out := wire.normalize()
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", resp.Status, truncate(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// truncate returns the first n bytes of body as a string.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
