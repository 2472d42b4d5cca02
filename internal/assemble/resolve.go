package assemble

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/onionskin/onion/internal/config"
	"github.com/onionskin/onion/internal/model"
)

// maxImageBytes caps a single fetched still.
const maxImageBytes int64 = 32 * 1024 * 1024

// Resolver turns a stored image value into encoded image bytes.
type Resolver interface {
	Resolve(ctx context.Context, image string) ([]byte, error)
}

// Router resolves embedded data URIs locally and dispatches remote
// references by scheme.
type Router struct {
	URL *URLResolver

	// S3 serves s3:// references. Nil when object storage is not configured.
	S3 Resolver
}

// NewResolver builds a Router from config. Object storage is only wired when
// its credentials are present.
func NewResolver(cfg *config.Config) (*Router, error) {
	r := &Router{URL: NewURLResolver(cfg.DemoBaseURL)}
	if cfg.Storage.Enabled() {
		s3, err := NewS3Resolver(cfg.Storage)
		if err != nil {
			return nil, err
		}
		r.S3 = s3
	}
	return r, nil
}

func (r *Router) Resolve(ctx context.Context, image string) ([]byte, error) {
	if !model.IsRemote(image) {
		_, data, err := model.DecodeDataURI(image)
		return data, err
	}
	if strings.HasPrefix(image, "s3://") {
		if r.S3 == nil {
			return nil, fmt.Errorf("object storage not configured for %s", image)
		}
		return r.S3.Resolve(ctx, image)
	}
	if r.URL == nil {
		return nil, fmt.Errorf("no resolver for %s", image)
	}
	return r.URL.Resolve(ctx, image)
}

// URLResolver fetches http(s) URLs and reads file paths. Relative references
// are joined onto BaseURL, which may itself be a URL or a local directory.
type URLResolver struct {
	BaseURL string
	Client  *http.Client
}

// NewURLResolver returns a resolver with a bounded HTTP client.
func NewURLResolver(baseURL string) *URLResolver {
	return &URLResolver{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *URLResolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	if u.BaseURL == "" && !strings.Contains(ref, "://") && !filepath.IsAbs(ref) {
		return nil, fmt.Errorf("relative image %s needs demo_base_url", ref)
	}
	target := u.locate(ref)

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return u.fetch(ctx, target)
	}
	target = strings.TrimPrefix(target, "file://")
	return readLimited(target)
}

// locate joins a relative reference onto the base.
func (u *URLResolver) locate(ref string) string {
	if strings.Contains(ref, "://") || u.BaseURL == "" {
		return ref
	}
	base := u.BaseURL
	if strings.Contains(base, "://") && !strings.HasPrefix(base, "file://") {
		b, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
		if err != nil {
			return ref
		}
		r, err := url.Parse(strings.TrimPrefix(ref, "/"))
		if err != nil {
			return ref
		}
		return b.ResolveReference(r).String()
	}
	return filepath.Join(strings.TrimPrefix(base, "file://"), filepath.FromSlash(ref))
}

func (u *URLResolver) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}
	return readAllLimited(resp.Body)
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readAllLimited(f)
}

func readAllLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, nil
}
