// Package evaluation talks to the remote answer and pronunciation scorers.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Options configure a scorer client.
type Options struct {
	URL string
	// Timeout bounds a single attempt. Zero means 30 seconds.
	Timeout time.Duration
	// MaxAttempts bounds the total number of attempts. Zero means 3.
	MaxAttempts int
	HTTPClient  *http.Client
	Logger      logrus.FieldLogger
}

type client struct {
	url         string
	http        *http.Client
	maxAttempts int
	log         logrus.FieldLogger
	newBackOff  func() backoff.BackOff
}

func newClient(opts Options) client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return client{
		url:         opts.URL,
		http:        opts.HTTPClient,
		maxAttempts: opts.MaxAttempts,
		log:         opts.Logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("scorer responded %d: %s", e.code, e.body)
}

// post sends the request built by build, retrying transport errors, 5xx and 429.
// build is called once per attempt so bodies can be re-read.
func (c client) post(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			serr := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return serr
			}
			return backoff.Permanent(serr)
		}
		body = raw
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.WithError(err).WithFields(logrus.Fields{"url": c.url, "attempt": attempt, "wait": wait}).Warn("scorer call failed, retrying")
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxAttempts-1)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return body, nil
}

var numberPattern = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// flexNumber accepts a JSON number, a numeric string, a string with a leading number
// ("85%", "4.5 / 5 stars") or null. Strings without a number decode as zero.
type flexNumber struct {
	value float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*n = flexNumber{}
	case float64:
		*n = flexNumber{value: t}
	case string:
		match := numberPattern.FindString(strings.ReplaceAll(t, ",", "."))
		if match == "" {
			*n = flexNumber{}
			return nil
		}
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return err
		}
		*n = flexNumber{value: f}
	default:
		return errors.New("unsupported number encoding")
	}
	return nil
}
