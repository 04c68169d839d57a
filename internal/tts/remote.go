package tts

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	custom_errors "github.com/pablopda/linux-speech-tools/internal/errors"
	"github.com/pablopda/linux-speech-tools/internal/metrics"
	"github.com/pablopda/linux-speech-tools/internal/tts/audio"
)

const speechPath = "/v1/audio/speech"

// RemoteConfig configures a RemoteSynthesizer.
type RemoteConfig struct {
	Endpoint      string // base URL, e.g. http://localhost:8880
	APIKey        string
	Model         string // used when a request has none
	Voice         string // used when a request has none
	Timeout       time.Duration
	RetryAttempts uint64
	RetryBase     time.Duration
	RetryMax      time.Duration
}

// RemoteSynthesizer calls an OpenAI compatible speech endpoint and decodes
// the WAV it returns.
type RemoteSynthesizer struct {
	client  *resty.Client
	cfg     RemoteConfig
	metrics *metrics.Metrics
}

type speechBody struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewRemoteSynthesizer creates a client for cfg.Endpoint. m may be nil.
func NewRemoteSynthesizer(cfg RemoteConfig, m *metrics.Metrics) *RemoteSynthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "audio/wav")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &RemoteSynthesizer{client: client, cfg: cfg, metrics: m}
}

// Synthesize implements Synthesizer. Transport failures, 429 and 5xx
// responses are retried with exponential backoff.
func (r *RemoteSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (*Audio, error) {
	body := speechBody{
		Model:          firstNonEmpty(req.Model, r.cfg.Model),
		Input:          req.Text,
		Voice:          firstNonEmpty(req.Voice, r.cfg.Voice),
		Speed:          req.Speed,
		ResponseFormat: "wav",
	}

	backoff := retry.WithMaxRetries(r.cfg.RetryAttempts,
		retry.WithJitter(50*time.Millisecond,
			retry.WithCappedDuration(r.cfg.RetryMax, retry.NewExponential(r.cfg.RetryBase))))

	start := time.Now()
	var clip *Audio
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		clip, callErr = r.call(ctx, body)
		return callErr
	})
	if r.metrics != nil {
		r.metrics.RecordTTSRequest(time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return clip, nil
}

func (r *RemoteSynthesizer) call(ctx context.Context, body speechBody) (*Audio, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiError{}).
		Post(speechPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.RetryableError(fmt.Errorf("%w: %v", custom_errors.ErrUpstreamServiceFailed, err))
	}

	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*apiError); ok && e.Error.Message != "" {
			msg = e.Error.Message
		}
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode(),
			"voice":  body.Voice,
		}).Warn("Speech endpoint returned an error")

		switch code := resp.StatusCode(); {
		case code == http.StatusTooManyRequests:
			return nil, retry.RetryableError(fmt.Errorf("%w: %s", custom_errors.ErrRateLimited, msg))
		case code >= http.StatusInternalServerError:
			return nil, retry.RetryableError(fmt.Errorf("%w: status %d: %s", custom_errors.ErrUpstreamServiceFailed, code, msg))
		default:
			return nil, fmt.Errorf("%w: status %d: %s", custom_errors.ErrUpstreamServiceFailed, code, msg)
		}
	}

	clip, err := audio.Decode(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", custom_errors.ErrUpstreamServiceFailed, err)
	}
	return clip, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
