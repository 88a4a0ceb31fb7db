package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BinderClient reads flat records from a remote entity binder
type BinderClient interface {
	RetrieveRecord(ctx context.Context, mapper, id string) (map[string]string, bool, error)
	ListRecords(ctx context.Context, mapper string, columns []string) ([]map[string]string, error)
}

func Debug(enabled string) func(*binderClient) {
	return func(c *binderClient) {
		c.debug = (enabled == "true")
	}
}

// Token sets a bearer token that is passed on with every request
func Token(token string) func(*binderClient) {
	return func(c *binderClient) {
		c.token = token
	}
}

func NewBinderClient(baseURL string, options ...func(*binderClient)) BinderClient {
	c := &binderClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeMapper   string = "mapper"
	TraceAttributeEntityID string = "entity-id"
)

var tracer = otel.Tracer("entity-binder-client")

type binderClient struct {
	baseURL    string
	token      string
	debug      bool
	httpClient http.Client
}

func (c *binderClient) RetrieveRecord(ctx context.Context, mapper, id string) (map[string]string, bool, error) {
	var err error

	ctx, span := tracer.Start(ctx, "retrieve-record",
		trace.WithAttributes(
			attribute.String(TraceAttributeMapper, mapper),
			attribute.String(TraceAttributeEntityID, id),
		),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	endpoint := fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, url.PathEscape(mapper), url.PathEscape(id))

	resp, respBody, err := c.call(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, false, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("binder returned status code %d (content-type: %s, body: %s)", resp.StatusCode, resp.Header.Get("Content-Type"), string(respBody))
		return nil, false, err
	}

	record := map[string]string{}
	err = json.Unmarshal(respBody, &record)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		return nil, false, err
	}

	return record, true, nil
}

type tableResponse struct {
	TotalRecords        int        `json:"iTotalRecords"`
	TotalDisplayRecords int        `json:"iTotalDisplayRecords"`
	Data                [][]string `json:"aaData"`
}

func (c *binderClient) ListRecords(ctx context.Context, mapper string, columns []string) ([]map[string]string, error) {
	var err error

	ctx, span := tracer.Start(ctx, "list-records",
		trace.WithAttributes(attribute.String(TraceAttributeMapper, mapper)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if len(columns) == 0 {
		err = fmt.Errorf("at least one column must be requested")
		return nil, err
	}

	params := url.Values{}
	params.Add("columns", strings.Join(columns, ","))
	endpoint := fmt.Sprintf("%s/api/v1/%s?%s", c.baseURL, url.PathEscape(mapper), params.Encode())

	resp, respBody, err := c.call(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("binder returned status code %d (content-type: %s, body: %s)", resp.StatusCode, resp.Header.Get("Content-Type"), string(respBody))
		return nil, err
	}

	table := tableResponse{}
	err = json.Unmarshal(respBody, &table)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		return nil, err
	}

	records := make([]map[string]string, 0, len(table.Data))

	for _, row := range table.Data {
		if len(row) != len(columns) {
			err = fmt.Errorf("row has %d values but %d columns were requested", len(row), len(columns))
			return nil, err
		}

		record := make(map[string]string, len(columns))
		for idx, col := range columns {
			record[col] = row[idx]
		}
		records = append(records, record)
	}

	return records, nil
}

func (c *binderClient) call(ctx context.Context, method, endpoint string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Add("Accept", "application/json")

	if c.token != "" {
		req.Header.Add("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		logging.GetFromContext(ctx).Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	return resp, respBody, nil
}
