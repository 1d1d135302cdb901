package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BrowserUserAgent is sent on scraping and direct-download requests.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Staging is the filesystem staging area strategies materialize into.
// Filenames embed a UUID so concurrent fetches for different users
// never collide; the directory itself needs no locking.
type Staging struct {
	dir    string
	client *http.Client
	logger *slog.Logger
}

// NewStaging creates the staging directory if needed. The timeout bounds
// every streamed download performed through this staging area.
func NewStaging(log *slog.Logger, dir string, timeout time.Duration) (*Staging, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("staging dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Staging{
		dir:    dir,
		client: &http.Client{Timeout: timeout},
		logger: log.With(slog.String("service", "staging")),
	}, nil
}

// Dir returns the staging directory path.
func (s *Staging) Dir() string { return s.dir }

// NameFor builds a platform- and content-type-prefixed unique filename.
// The prefix is debugging aid only; uniqueness comes from the UUID.
func (s *Staging) NameFor(p Platform, ct ContentType, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s_%s_%s.%s", p, ct, uuid.NewString(), ext)
}

// Path resolves a staged filename to its absolute location.
func (s *Staging) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Download streams the given URL into the staging area under name.
// On any failure the partial file is removed before returning, so a
// failed strategy never leaves an orphan behind. Returns the final path
// and the written byte count.
func (s *Staging) Download(ctx context.Context, rawURL string, header http.Header, name string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, Errorf(KindNetwork, "build download request: %w", err)
	}
	if header != nil {
		req.Header = header.Clone()
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", BrowserUserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, Normalize(err)
	}
	defer resp.Body.Close()

	if err := statusToError(resp.StatusCode); err != nil {
		return "", 0, err
	}

	dest := s.Path(name)
	file, err := os.Create(dest)
	if err != nil {
		return "", 0, Errorf(KindNetwork, "create staged file: %w", err)
	}

	written, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written == 0 {
		err = fmt.Errorf("empty response body")
	}
	if err != nil {
		if removeErr := os.Remove(dest); removeErr != nil {
			s.logger.Warn("remove partial failed", slog.String("path", dest), slog.Any("error", removeErr))
		}
		return "", 0, Normalize(err)
	}
	return dest, written, nil
}

// Remove deletes a staged file. Used by the delivery layer after the
// artifact has been sent; missing files are not an error.
func (s *Staging) Remove(p string) error {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// statusToError maps an HTTP response status onto the error taxonomy.
func statusToError(status int) *Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound, status == http.StatusGone:
		return Errorf(KindNotFound, "http status %d", status)
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return Errorf(KindTimeout, "http status %d", status)
	case status >= 400 && status < 500:
		return &Error{Kind: KindRemoteRejected, Code: fmt.Sprintf("http_%d", status)}
	default:
		return Errorf(KindNetwork, "http status %d", status)
	}
}

// knownExtensions bounds the set accepted from URL suffix sniffing.
var knownExtensions = []string{"mp4", "mp3", "jpg", "jpeg", "png", "gif"}

// ExtensionFor determines the output extension: a provider-supplied
// filename wins, then a known extension on the URL path, then the
// content-type default.
func ExtensionFor(providerFilename, rawURL string, ct ContentType) string {
	if ext := strings.TrimPrefix(path.Ext(providerFilename), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if u, err := url.Parse(rawURL); err == nil {
		urlExt := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		for _, ext := range knownExtensions {
			if urlExt == ext {
				if ext == "jpeg" {
					return "jpg"
				}
				return ext
			}
		}
	}
	return DefaultExtension(ct)
}

// DefaultExtension is the fallback extension per content type.
func DefaultExtension(ct ContentType) string {
	switch ct {
	case ContentAudio:
		return "mp3"
	case ContentImage:
		return "jpg"
	default:
		return "mp4"
	}
}
