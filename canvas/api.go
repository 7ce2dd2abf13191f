package canvas

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultBaseURL         = "https://canvas.nus.edu.sg/"
	DefaultEnrollmentState = "active"

	// Canvas pages at 10 items unless told otherwise, which silently truncates folder listings.
	DefaultPerPage = 100

	DefaultRequestTimeout  = 30 * time.Second
	DefaultDownloadTimeout = 10 * time.Minute
)

// Config is everything needed to talk to a Canvas instance.  It's copied into the API on
// construction and never changes afterwards.
type Config struct {
	// Root of the Canvas instance, e.g. https://canvas.nus.edu.sg/
	BaseURL string

	// Personal access token, sent as a bearer token.
	Token string

	// Which enrollments to list courses for: active, invited_or_pending, completed.
	EnrollmentState string

	// Page size for every listing call.
	PerPage int

	// Timeout for each listing page, and for each whole file download.
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration

	// HTTP clients - you can substitute VCR or whatnot.  Client is used for the JSON API,
	// DownloadClient for file contents.  Both default to a fresh http.Client.
	Client         *http.Client
	DownloadClient *http.Client
}

// API is a read-only Canvas REST client.
type API struct {
	baseURI *url.URL
	token   string

	enrollmentState string
	perPage         int

	requestTimeout  time.Duration
	downloadTimeout time.Duration

	client         *http.Client
	downloadClient *http.Client
}

func NewAPI(cfg Config) (*API, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("canvas: auth token is empty, please check api-token or api-token-cmd")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("canvas: couldn't parse base URL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("canvas: base URL %q must be http or https", cfg.BaseURL)
	}

	if cfg.EnrollmentState == "" {
		cfg.EnrollmentState = DefaultEnrollmentState
	}
	if cfg.PerPage < 1 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.DownloadClient == nil {
		cfg.DownloadClient = &http.Client{}
	}

	return &API{
		baseURI:         u,
		token:           cfg.Token,
		enrollmentState: cfg.EnrollmentState,
		perPage:         cfg.PerPage,
		requestTimeout:  cfg.RequestTimeout,
		downloadTimeout: cfg.DownloadTimeout,
		client:          cfg.Client,
		downloadClient:  cfg.DownloadClient,
	}, nil
}

// BaseURI returns a copy of the instance root, e.g. for resolving relative links.
func (api *API) BaseURI() *url.URL {
	u := *api.baseURI
	return &u
}
