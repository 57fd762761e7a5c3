package probe

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"csheet/internal/stamp"
)

// ErrUnavailable is returned for null resource URLs.
var ErrUnavailable = errors.New("resource unavailable")

// Kind classifies probe failures.
type Kind string

const (
	KindStatus    Kind = "status"
	KindTransport Kind = "transport"
	KindDecode    Kind = "decode"
	KindCanceled  Kind = "canceled"
)

// Error describes a failed probe.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("probe %s: unexpected status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("probe %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Dimensions is the natural size of a probed resource. Videos report zero.
type Dimensions struct {
	Width  int
	Height int
}

// Known reports whether the dimensions can size a display box.
func (d Dimensions) Known() bool {
	return d.Width > 0 && d.Height > 0
}

// Aspect returns width/height, or zero when unknown.
func (d Dimensions) Aspect() float64 {
	if !d.Known() {
		return 0
	}
	return float64(d.Width) / float64(d.Height)
}

// Prober loads a resource and reports its dimensions.
type Prober interface {
	Probe(ctx context.Context, url string) (Dimensions, error)
}

// Func adapts a function to Prober.
type Func func(ctx context.Context, url string) (Dimensions, error)

// Probe implements Prober.
func (f Func) Probe(ctx context.Context, url string) (Dimensions, error) {
	return f(ctx, url)
}

// HTTPProber probes resources over HTTP.
type HTTPProber struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// Option configures an HTTPProber.
type Option func(*HTTPProber)

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) Option {
	return func(p *HTTPProber) {
		if client != nil {
			p.client = client
		}
	}
}

// WithBaseURL resolves relative resource URLs against base.
func WithBaseURL(base string) Option {
	return func(p *HTTPProber) {
		p.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithTimeout bounds each probe.
func WithTimeout(timeout time.Duration) Option {
	return func(p *HTTPProber) {
		p.timeout = timeout
	}
}

// NewHTTP constructs an HTTP prober.
func NewHTTP(opts ...Option) *HTTPProber {
	p := &HTTPProber{client: http.DefaultClient}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe fetches url and decodes the image header when the body is an image.
func (p *HTTPProber) Probe(ctx context.Context, url string) (Dimensions, error) {
	if stamp.IsNull(url) {
		return Dimensions{}, ErrUnavailable
	}
	target := p.resolve(url)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Dimensions{}, &Error{Kind: KindTransport, URL: target, Err: err}
	}
	req.Header.Set("Accept", "image/*,video/*;q=0.8")
	resp, err := p.client.Do(req)
	if err != nil {
		return Dimensions{}, classifyTransport(ctx, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Dimensions{}, &Error{Kind: KindStatus, URL: target, Status: resp.StatusCode}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "video/") {
		return Dimensions{}, nil
	}

	cfg, _, err := image.DecodeConfig(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return Dimensions{}, &Error{Kind: KindCanceled, URL: target, Err: ctx.Err()}
		}
		return Dimensions{}, &Error{Kind: KindDecode, URL: target, Err: err}
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

func (p *HTTPProber) resolve(url string) string {
	if p.baseURL == "" || strings.Contains(url, "://") {
		return url
	}
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return p.baseURL + url
}

func classifyTransport(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCanceled, URL: url, Err: err}
	}
	return &Error{Kind: KindTransport, URL: url, Err: err}
}

// IsKind reports whether err is a probe error of the given kind.
func IsKind(err error, kind Kind) bool {
	var probeErr *Error
	return errors.As(err, &probeErr) && probeErr.Kind == kind
}
