// Package pskreporter implements the polling source adapter for the
// PSK Reporter reception-report feed.
//
// The upstream service enforces an undocumented minimum polling interval
// and answers 503 when polled too often. The adapter never retries inside
// a cycle; cadence is owned by the scheduler.
package pskreporter

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/spotwatch/internal/domain/model"
	"github.com/okian/spotwatch/pkg/logger"
	"github.com/okian/spotwatch/pkg/metrics"
)

// SourceName identifies this adapter in alerts and dedup records.
const SourceName = "pskreporter"

// Default endpoint and timeout constants.
const (
	defaultQueryURL = "https://retrieve.pskreporter.info/query"

	connectTimeout = 5 * time.Second
	readTimeout    = 10 * time.Second
	totalTimeout   = 15 * time.Second

	// Upstream caps result size; ask for the maximum.
	fetchLimit = 1000
)

// Adapter polls the reception-report endpoint once per monitoring cycle.
type Adapter struct {
	queryURL string
	client   *http.Client
	log      logger.Logger
	now      func() time.Time
}

// New creates an adapter with a long-lived HTTP client bounded by
// separate connect/read/total timeouts.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		queryURL: defaultQueryURL,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = logger.Nop()
	}
	if a.client == nil {
		a.client = &http.Client{
			Timeout: totalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
				ResponseHeaderTimeout: readTimeout,
				MaxIdleConnsPerHost:   2,
			},
		}
	}

	return a
}

// Name returns the source name.
func (a *Adapter) Name() string { return SourceName }

// SupportedModes returns the digital mode vocabulary of this feed.
func (a *Adapter) SupportedModes() []string { return model.DigitalModes() }

// receptionReports mirrors the XML response envelope.
type receptionReports struct {
	XMLName xml.Name          `xml:"receptionReports"`
	Reports []receptionReport `xml:"receptionReport"`
}

type receptionReport struct {
	ReceiverCallsign string `xml:"receiverCallsign,attr"`
	SenderCallsign   string `xml:"senderCallsign,attr"`
	Frequency        string `xml:"frequency,attr"`
	Mode             string `xml:"mode,attr"`
	FlowStartSeconds int64  `xml:"flowStartSeconds,attr"`
}

// FetchRecent polls the feed for reports after since. Transient upstream
// failures (timeouts, 503, malformed body) are logged and reported as an
// empty batch so the cycle continues.
func (a *Adapter) FetchRecent(ctx context.Context, since time.Time) ([]model.Spot, error) {
	now := a.now().UTC()
	timerange := int64(now.Sub(since).Seconds())
	if timerange < 60 {
		timerange = 60
	}

	q := url.Values{}
	q.Set("flowStartSeconds", strconv.FormatInt(-timerange, 10))
	q.Set("limit", strconv.Itoa(fetchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.queryURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Warn(ctx, "feed request failed", logger.Error(err))
		metrics.RecordFetchError(SourceName)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		// Polled too frequently. Do not retry within this cycle.
		a.log.Warn(ctx, "feed throttled the query, skipping cycle",
			logger.Int("status", resp.StatusCode))
		metrics.RecordFetchError(SourceName)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		a.log.Warn(ctx, "feed returned unexpected status",
			logger.Int("status", resp.StatusCode))
		metrics.RecordFetchError(SourceName)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.log.Warn(ctx, "reading feed response failed", logger.Error(err))
		metrics.RecordFetchError(SourceName)
		return nil, nil
	}

	var envelope receptionReports
	if err := xml.Unmarshal(body, &envelope); err != nil {
		a.log.Warn(ctx, "feed response is not valid XML", logger.Error(err))
		metrics.RecordFetchError(SourceName)
		return nil, nil
	}

	spots := make([]model.Spot, 0, len(envelope.Reports))
	for _, report := range envelope.Reports {
		spot, ok := a.parseReport(report, now)
		if !ok {
			metrics.RecordParseError(SourceName)
			continue
		}
		if spot.Timestamp.Before(since) {
			continue
		}
		metrics.RecordSpotIngested(SourceName)
		spots = append(spots, spot)
	}

	a.log.Debug(ctx, "fetched spots", logger.Int("count", len(spots)))
	return spots, nil
}

// parseReport converts one XML report element to a Spot. Reports missing
// a sender callsign or mode are skipped individually.
func (a *Adapter) parseReport(r receptionReport, ingestedAt time.Time) (model.Spot, bool) {
	callsign := model.NormalizeCallsign(r.SenderCallsign)
	mode := model.NormalizeMode(r.Mode)
	if callsign == "" || mode == "" {
		return model.Spot{}, false
	}

	// This feed already reports frequency in Hz.
	var frequency int64
	if r.Frequency != "" {
		f, err := strconv.ParseFloat(r.Frequency, 64)
		if err != nil {
			return model.Spot{}, false
		}
		frequency = int64(f)
	}

	ts := ingestedAt
	if r.FlowStartSeconds > 0 {
		ts = time.Unix(r.FlowStartSeconds, 0).UTC()
	}

	return model.Spot{
		Callsign:  callsign,
		Mode:      mode,
		Frequency: frequency,
		Timestamp: ts,
		SpotID:    model.FallbackSpotID(callsign, mode, frequency, ts),
		Source:    SourceName,
		Spotter:   model.NormalizeCallsign(r.ReceiverCallsign),
	}, true
}

// TestConnection issues a minimal query and reports whether the feed
// answered 200.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.queryURL+"?flowStartSeconds=-300&mode=FT8", nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Warn(ctx, "connection test failed", logger.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections. Idempotent.
func (a *Adapter) Close(_ context.Context) error {
	a.client.CloseIdleConnections()
	return nil
}
