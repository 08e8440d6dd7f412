// Package crm is a Bitrix24 webhook REST client scoped to the deal operations
// the automation needs.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pgfnsync/internal/platform/config"
	"pgfnsync/internal/upstream"
)

const (
	upstreamName = "bitrix"
	maxBodyBytes = 4 << 20
	// maxPages bounds a single listing in case the server keeps returning next.
	maxPages = 200
)

// Client calls Bitrix24 REST methods through an inbound webhook URL.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	healthTimeout time.Duration
	taxpayerField string
	logger        *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a client for the webhook at cfg.APIURL.
func New(cfg config.BitrixConfig, opts ...Option) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("bitrix API URL is required")
	}
	c := &Client{
		baseURL:       strings.TrimRight(cfg.APIURL, "/"),
		httpClient:    &http.Client{},
		timeout:       cfg.Timeout,
		healthTimeout: cfg.HealthTimeout,
		taxpayerField: cfg.TaxpayerField,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope is the common Bitrix24 response shape.
type envelope struct {
	Result           json.RawMessage `json:"result"`
	Next             *int            `json:"next,omitempty"`
	Total            int             `json:"total,omitempty"`
	Error            string          `json:"error,omitempty"`
	ErrorDescription string          `json:"error_description,omitempty"`
}

// ListCandidates lists deals created since the given instant in each stage,
// concatenated in stage order.
func (c *Client) ListCandidates(ctx context.Context, pipeline int, stages []string, since time.Time) ([]Deal, error) {
	var deals []Deal
	for _, stage := range stages {
		stageDeals, err := c.listStage(ctx, pipeline, stage, since)
		if err != nil {
			return nil, fmt.Errorf("list stage %s: %w", stage, err)
		}
		deals = append(deals, stageDeals...)
	}
	return deals, nil
}

func (c *Client) listStage(ctx context.Context, pipeline int, stage string, since time.Time) ([]Deal, error) {
	selectFields := []string{"ID", "TITLE", "COMPANY_ID", "STAGE_ID", "DATE_CREATE"}
	if c.taxpayerField != "" {
		selectFields = append(selectFields, c.taxpayerField)
	}

	var deals []Deal
	start := 0
	for page := 0; page < maxPages; page++ {
		payload := map[string]any{
			"filter": map[string]any{
				"CATEGORY_ID":   strconv.Itoa(pipeline),
				"STAGE_ID":      stage,
				">=DATE_CREATE": since.Format(time.RFC3339),
			},
			"select": selectFields,
			"start":  start,
		}
		env, err := c.call(ctx, "crm.deal.list", c.timeout, payload)
		if err != nil {
			return nil, err
		}

		var rows []map[string]any
		if len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, &rows); err != nil {
				return nil, upstream.New(upstream.CategoryContractMismatch, upstreamName, "crm.deal.list", "result is not a list", err)
			}
		}
		for _, row := range rows {
			deals = append(deals, c.dealFromRow(row, stage))
		}
		if env.Next == nil || len(rows) == 0 {
			break
		}
		start = *env.Next
	}

	c.logStage(ctx, stage, since, deals)
	return deals, nil
}

func (c *Client) logStage(ctx context.Context, stage string, since time.Time, deals []Deal) {
	c.logger.InfoContext(ctx, "stage listed",
		"stage", stage,
		"deals", len(deals),
		"since", since.Format(time.RFC3339),
	)
	for i, d := range deals {
		if i == 5 {
			c.logger.DebugContext(ctx, "more deals not shown", "stage", stage, "remaining", len(deals)-5)
			break
		}
		c.logger.DebugContext(ctx, "deal found", "deal_id", d.ID, "title", d.Title, "created_at", d.CreatedAt)
	}
}

func (c *Client) dealFromRow(row map[string]any, stage string) Deal {
	d := Deal{
		ID:        stringify(row["ID"]),
		Title:     stringify(row["TITLE"]),
		CompanyID: stringify(row["COMPANY_ID"]),
		StageID:   stringify(row["STAGE_ID"]),
	}
	if d.StageID == "" {
		d.StageID = stage
	}
	if c.taxpayerField != "" {
		d.TaxpayerID = strings.TrimSpace(stringify(row[c.taxpayerField]))
	}
	if created, err := time.Parse(time.RFC3339, stringify(row["DATE_CREATE"])); err == nil {
		d.CreatedAt = created
	}
	return d
}

// GetRecordFields returns the requested keys of a deal. Missing or null values
// come back as empty strings.
func (c *Client) GetRecordFields(ctx context.Context, id string, keys []string) (map[string]string, error) {
	row, err := c.getEntity(ctx, "crm.deal.get", id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		out[key] = strings.TrimSpace(stringify(row[key]))
	}
	return out, nil
}

// GetRelatedEntityField reads one field of a company. A missing company id
// yields "" with no request.
func (c *Client) GetRelatedEntityField(ctx context.Context, companyID, key string) (string, error) {
	if companyID == "" || companyID == "0" {
		return "", nil
	}
	row, err := c.getEntity(ctx, "crm.company.get", companyID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stringify(row[key])), nil
}

func (c *Client) getEntity(ctx context.Context, method, id string) (map[string]any, error) {
	env, err := c.call(ctx, method, c.timeout, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err := json.Unmarshal(env.Result, &row); err != nil || row == nil {
		return nil, upstream.New(upstream.CategoryContractMismatch, upstreamName, method, "result is not an object", err)
	}
	return row, nil
}

// WriteFields updates deal fields. It returns false when Bitrix answers
// without error but with a falsy result.
func (c *Client) WriteFields(ctx context.Context, id string, fields map[string]string) (bool, error) {
	return c.update(ctx, "crm.deal.update", id, fields)
}

// UpdateContactFields updates contact fields, used by the lookup service webhook.
func (c *Client) UpdateContactFields(ctx context.Context, id string, fields map[string]string) (bool, error) {
	return c.update(ctx, "crm.contact.update", id, fields)
}

func (c *Client) update(ctx context.Context, method, id string, fields map[string]string) (bool, error) {
	env, err := c.call(ctx, method, c.timeout, map[string]any{"id": id, "fields": fields})
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(env.Result, &ok); err != nil {
		return false, nil
	}
	return ok, nil
}

// HealthCheck calls crm.deal.fields, which also fails on bad webhook credentials.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.call(ctx, "crm.deal.fields", c.healthTimeout, nil)
	return err
}

func (c *Client) call(ctx context.Context, method string, timeout time.Duration, payload any) (*envelope, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, upstream.New(upstream.CategoryInternal, upstreamName, method, "encode payload", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, body)
	if err != nil {
		return nil, upstream.New(upstream.CategoryInternal, upstreamName, method, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, upstream.FromTransport(upstreamName, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, upstream.FromTransport(upstreamName, method, err)
	}
	return parseEnvelope(method, resp.StatusCode, raw)
}

func parseEnvelope(method string, status int, raw []byte) (*envelope, error) {
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if env.Error != "" {
		return nil, fromBitrixError(method, status, env.Error, env.ErrorDescription)
	}
	if status < 200 || status > 299 {
		return nil, upstream.FromStatus(upstreamName, method, status, "")
	}
	if decodeErr != nil {
		return nil, upstream.New(upstream.CategoryBadData, upstreamName, method, "malformed response body", decodeErr)
	}
	return &env, nil
}

// fromBitrixError classifies the error codes Bitrix24 puts in the response body.
func fromBitrixError(method string, status int, code, description string) *upstream.Error {
	msg := code
	if description != "" {
		msg += ": " + description
	}

	var category upstream.Category
	switch strings.ToUpper(code) {
	case "INVALID_CREDENTIALS", "EXPIRED_TOKEN", "NO_AUTH_FOUND", "INVALID_TOKEN", "INSUFFICIENT_SCOPE", "ACCESS_DENIED":
		category = upstream.CategoryAuthentication
	case "ERROR_METHOD_NOT_FOUND", "METHOD_NOT_FOUND":
		category = upstream.CategoryContractMismatch
	case "QUERY_LIMIT_EXCEEDED", "OPERATION_TIME_LIMIT":
		category = upstream.CategoryRateLimited
	case "NOT_FOUND":
		category = upstream.CategoryNotFound
	default:
		if status >= 500 {
			category = upstream.CategoryOutage
		} else {
			category = upstream.CategoryBadData
		}
	}
	if category == upstream.CategoryBadData && strings.Contains(strings.ToLower(description), "not found") {
		category = upstream.CategoryNotFound
	}
	e := upstream.New(category, upstreamName, method, msg, nil)
	e.StatusCode = status
	return e
}

// stringify renders a decoded JSON value the way Bitrix displays it.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case []any:
		if len(t) == 0 {
			return ""
		}
		return stringify(t[0])
	default:
		return fmt.Sprint(t)
	}
}
