package erp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/delinquency/internal/clock"
	"github.com/smallbiznis/delinquency/internal/config"
	obsmetrics "github.com/smallbiznis/delinquency/internal/observability/metrics"
	"github.com/smallbiznis/delinquency/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultPageSize  = 100
	maxErrorBodySize = 512
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Clock   clock.Clock
	Pacer   *ratelimit.Pacer    `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
	HTTP    *http.Client        `name:"erp_http" optional:"true"`
}

// Client reads listings from the ERP web service.
type Client struct {
	cfg        config.ERPConfig
	reportDays int
	reference  *time.Time
	location   *time.Location

	httpClient *http.Client
	pacer      *ratelimit.Pacer
	clock      clock.Clock
	metrics    *obsmetrics.Metrics
	log        *zap.Logger
}

func New(p Params) *Client {
	httpClient := p.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: p.Cfg.ERP.Timeout}
	}
	pacer := p.Pacer
	if pacer == nil {
		pacer = ratelimit.NewPacer(p.Cfg.ERP.MinRequestDelay, nil)
	}
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Client{
		cfg:        p.Cfg.ERP,
		reportDays: p.Cfg.ReportDays,
		reference:  p.Cfg.ReferenceDate,
		location:   p.Cfg.Location(),
		httpClient: httpClient,
		pacer:      pacer,
		clock:      c,
		metrics:    p.Metrics,
		log:        p.Log.Named("erp.client"),
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.BaseURL) != ""
}

// ListAll walks every page of a listing. It stops at the first empty page
// or once the collected rows reach the total reported by the first page.
func (c *Client) ListAll(ctx context.Context, endpoint string, q Query) ([]Row, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	pageSize := c.cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	all := make([]Row, 0)
	total := -1
	for page := 1; ; page++ {
		resp, err := c.fetchPage(ctx, endpoint, q, page, pageSize)
		if err != nil {
			return nil, err
		}
		c.metrics.RecordERPPage(ctx, endpoint, len(resp.Registros))
		if len(resp.Registros) == 0 {
			break
		}
		all = append(all, resp.Registros...)
		if total < 0 {
			total = int(resp.Total)
			c.log.Debug("erp listing started", zap.String("endpoint", endpoint), zap.Int("expected", total))
		}
		if len(all) >= total {
			break
		}
	}

	c.log.Info("erp listing fetched", zap.String("endpoint", endpoint), zap.Int("rows", len(all)))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, endpoint string, q Query, page, pageSize int) (*listResponse, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := q.request(page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("encode %s query: %w", endpoint, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s query: %w", endpoint, err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/webservice/v1/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("ixcsoft", "listar")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+basicCredentials(c.cfg.UserID, c.cfg.Token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Endpoint: endpoint, Page: page, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &Error{
			Endpoint:   endpoint,
			Page:       page,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}

	var out listResponse
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&out); err != nil {
		return nil, &Error{Endpoint: endpoint, Page: page, Message: "invalid response body", Err: err}
	}
	if strings.EqualFold(out.Type, "error") {
		return nil, &Error{Endpoint: endpoint, Page: page, Message: out.Message}
	}
	return &out, nil
}

func basicCredentials(user, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + token))
}

// BillWindow returns the due-date window synced for bills: from
// ReportDays before today through today.
func (c *Client) BillWindow() (time.Time, time.Time) {
	today := c.clock.Now().In(c.location)
	if c.reference != nil {
		today = *c.reference
	}
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	days := c.reportDays
	if days <= 0 {
		days = 45
	}
	return today.AddDate(0, 0, -days), today
}
