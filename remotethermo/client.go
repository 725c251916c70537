package remotethermo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	BaseURL     = "https://www.nti.remotethermo.com"
	RefreshPath = "/R2/PlantMenu/Refresh"
	CookieName  = ".AspNet.ApplicationCookie"

	DefaultTimeout = 15 * time.Second
	UserAgent      = "go-remotethermo"

	maxLoggedBody = 500
)

type Client struct {
	baseURL    string
	clientID   string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
	mutex      sync.Mutex
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout overrides the request timeout. It applies to a copy of the
// HTTP client, so a client passed through WithHTTPClient is left untouched.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(clientID string, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    BaseURL,
		clientID:   clientID,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		httpClient := *c.httpClient
		httpClient.Timeout = c.timeout
		c.httpClient = &httpClient
	}

	return c
}

func (c *Client) ClientID() string {
	return c.clientID
}

// Fetch returns the decoded JSON body of the Refresh endpoint for the given
// param IDs. Only one request is in flight per client at any time; the vendor
// session cookie does not cope with concurrent use.
func (c *Client) Fetch(ctx context.Context, paramIDs []string) (any, error) {
	req, err := c.newRequest(ctx, paramIDs)
	if err != nil {
		return nil, transportError("HTTP client error", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, readErr := io.ReadAll(resp.Body)
		snippet := "<unable to read body>"
		if readErr == nil {
			snippet = truncateBody(body)
		}

		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("reason", http.StatusText(resp.StatusCode)).
			Str("client_id", c.clientID).
			Str("url", req.URL.String()).
			Str("body", snippet).
			Msg("NTI API HTTP error")

		return nil, statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classifyTransportError(ctx, err)
	}

	payload, err := decodeJSON(body)
	if err != nil {
		c.logger.Error().
			Str("client_id", c.clientID).
			Str("url", req.URL.String()).
			Str("body", truncateBody(body)).
			Msg("NTI API returned non-JSON response")

		return nil, transportError("non-JSON response", err)
	}

	return payload, nil
}

func (c *Client) newRequest(ctx context.Context, paramIDs []string) (*http.Request, error) {
	query := url.Values{}
	query.Set("id", c.clientID)
	query.Set("paramIds", strings.Join(paramIDs, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+RefreshPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	// Without these the vendor answers with a spurious 403.
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", BaseURL+"/")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: c.token})

	return req, nil
}

func (c *Client) classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	event := c.logger.Warn().Str("client_id", c.clientID).Str("url", c.baseURL+RefreshPath).Err(err)

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		event.Msg("NTI API request timed out")
		return transportError("request timed out", err)
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		event.Msg("NTI API connection error")
		return transportError("connection error", err)
	}

	event.Msg("NTI API client error")

	return transportError("HTTP client error", err)
}

func decodeJSON(body []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}

	if decoder.More() {
		return nil, errors.New("trailing data after JSON value")
	}

	return payload, nil
}

func truncateBody(body []byte) string {
	s := string(body)
	if r := []rune(s); len(r) > maxLoggedBody {
		s = string(r[:maxLoggedBody])
	}

	return strings.NewReplacer("\n", `\n`, "\r", `\r`).Replace(s)
}
