package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/toothbrush/canvas-dump/canvas"
	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"
)

// newCanvasAPI builds the client from flags.  The returned stop func must be called once done; it
// flushes the VCR cassette when --with-vcr is on.
func newCanvasAPI() (*canvas.API, func() error, error) {
	noop := func() error { return nil }

	token, err := resolveToken(tokenSources{
		Token:   APIToken,
		EnvFile: EnvFile,
		Cmd:     APITokenCmd,
	})
	if err != nil {
		return nil, noop, err
	}

	requestTimeout, err := time.ParseDuration(RequestTimeout)
	if err != nil {
		return nil, noop, fmt.Errorf("api: bad request-timeout %q: %w", RequestTimeout, err)
	}
	downloadTimeout, err := time.ParseDuration(DownloadTimeout)
	if err != nil {
		return nil, noop, fmt.Errorf("api: bad download-timeout %q: %w", DownloadTimeout, err)
	}

	cfg := canvas.Config{
		BaseURL:         CanvasURL,
		Token:           token,
		EnrollmentState: EnrollmentState,
		PerPage:         PerPage,
		RequestTimeout:  requestTimeout,
		DownloadTimeout: downloadTimeout,
	}

	stop := noop
	if WithVCR {
		// set up VCR recordings.  Only listings go through it, file contents would bloat the
		// cassette.
		opts := &recorder.Options{
			CassetteName:       "fixtures/canvas-listings",
			Mode:               recorder.ModeReplayWithNewEpisodes,
			SkipRequestLatency: true,
			RealTransport:      http.DefaultTransport,
		}
		r, err := recorder.NewWithOptions(opts)
		if err != nil {
			return nil, noop, fmt.Errorf("api: couldn't set up go-vcr recording: %w", err)
		}

		// Add a hook which removes Authorization headers from all requests
		hook := func(i *cassette.Interaction) error {
			delete(i.Request.Headers, "Authorization")
			return nil
		}
		r.AddHook(hook, recorder.AfterCaptureHook)
		r.SetReplayableInteractions(true)
		cfg.Client = r.GetDefaultClient()
		stop = r.Stop
	}

	api, err := canvas.NewAPI(cfg)
	if err != nil {
		_ = stop()
		return nil, noop, fmt.Errorf("api: couldn't instantiate Canvas API: %w", err)
	}
	return api, stop, nil
}
