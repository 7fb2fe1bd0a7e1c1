// Package inputprocessor loads category files given on the command line,
// either as a local path or as an http(s) URL.
package inputprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxInputBytes bounds how much of a file or response body is read.
const maxInputBytes = 10 << 20

// Result holds a loaded input.
type Result struct {
	Body        []byte
	ContentType string
	// Name is the file name (for URLs, the last path segment). Its extension
	// is used to pick the import format.
	Name      string
	InputType string // "file" or "url"
}

// Processor loads an input string into memory.
type Processor interface {
	Process(ctx context.Context, input string) (Result, error)
}

// New creates a processor. A nil client uses a client with a 30s timeout.
func New(client *http.Client) Processor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &defaultProcessor{client: client}
}

type defaultProcessor struct {
	client *http.Client
}

func (p *defaultProcessor) Process(ctx context.Context, input string) (Result, error) {
	if u, err := url.Parse(input); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return p.fetch(ctx, u)
	}
	return readFile(input)
}

func readFile(input string) (Result, error) {
	fi, err := os.Stat(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("input '%s' is neither a file nor an http(s) URL", input)
		}
		return Result{}, fmt.Errorf("failed to stat input '%s': %w", input, err)
	}
	if fi.IsDir() {
		return Result{}, fmt.Errorf("input '%s' is a directory, not a file", input)
	}
	if fi.Size() > maxInputBytes {
		return Result{}, fmt.Errorf("input '%s' is larger than %d bytes", input, maxInputBytes)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return Result{}, fmt.Errorf("permission denied reading file '%s': %w", input, err)
		}
		return Result{}, fmt.Errorf("failed to read file '%s': %w", input, err)
	}
	log.WithField("path", input).Debug("Input detected as a file")
	return Result{
		Body:        data,
		ContentType: http.DetectContentType(data),
		Name:        filepath.Base(input),
		InputType:   "file",
	}, nil
}

func (p *defaultProcessor) fetch(ctx context.Context, u *url.URL) (Result, error) {
	log.WithField("url", u.String()).Debug("Input detected as a URL")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request for URL '%s': %w", u, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch URL '%s': %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		hint, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, fmt.Errorf("failed to fetch URL '%s': status code %d %s - Body Hint: %s",
			u, resp.StatusCode, http.StatusText(resp.StatusCode), string(hint))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInputBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response body from URL '%s': %w", u, err)
	}
	if len(body) > maxInputBytes {
		return Result{}, fmt.Errorf("response from '%s' is larger than %d bytes", u, maxInputBytes)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	return Result{
		Body:        body,
		ContentType: ct,
		Name:        path.Base(u.Path),
		InputType:   "url",
	}, nil
}

// Ensure defaultProcessor satisfies the Processor interface.
var _ Processor = (*defaultProcessor)(nil)
