// Package erp issues authenticated HTTP calls against a tenant's ERP and
// normalizes its column-oriented bulk responses into row records.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"vendagate/internal/credentials"
	"vendagate/internal/tokenbroker"
)

// TokenSource is the broker capability the gateway depends on.
type TokenSource interface {
	GetToken(ctx context.Context, tenantID string, forceRefresh bool) (tokenbroker.Token, error)
}

type Gateway struct {
	resolver  credentials.Resolver
	tokens    TokenSource
	client    *http.Client
	batchSize int
	log       *zap.SugaredLogger
}

func NewGateway(resolver credentials.Resolver, tokens TokenSource, timeout time.Duration, batchSize int, log *zap.SugaredLogger) *Gateway {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Gateway{
		resolver:  resolver,
		tokens:    tokens,
		client:    &http.Client{Timeout: timeout},
		batchSize: batchSize,
		log:       log,
	}
}

// Call performs one authenticated request. A 401/403 answer triggers exactly
// one forced token refresh and one retry; a second rejection surfaces as
// *AuthRejectedError. Other non-2xx answers surface as *UpstreamError.
func (g *Gateway) Call(ctx context.Context, tenantID, method, path string, body any) ([]byte, error) {
	cred, err := g.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	status, respBody, err := g.do(ctx, cred.BaseURL, tenantID, method, path, payload, false)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		g.log.Infow("ERP rejected token, forcing refresh", "tenant", tenantID, "status", status)
		status, respBody, err = g.do(ctx, cred.BaseURL, tenantID, method, path, payload, true)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, &AuthRejectedError{TenantID: tenantID, Status: status}
		}
	}
	if status < 200 || status > 299 {
		return nil, &UpstreamError{Status: status, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

func (g *Gateway) do(ctx context.Context, baseURL, tenantID, method, path string, payload []byte, forceRefresh bool) (int, []byte, error) {
	tok, err := g.tokens.GetToken(ctx, tenantID, forceRefresh)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Bearer)
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("ERP call: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	return resp.StatusCode, b, nil
}

// LoadRecords executes one bulk query and returns normalized rows.
func (g *Gateway) LoadRecords(ctx context.Context, tenantID string, q BulkQuery) ([]Record, error) {
	raw, err := g.Call(ctx, tenantID, http.MethodPost, loadRecordsPath, q.envelope())
	if err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

// LoadRecordsByKeys fans a large key set out over sequential batches, one bulk
// call per batch, and concatenates the rows. A failed batch aborts the whole
// operation; there is no partial success.
func (g *Gateway) LoadRecordsByKeys(ctx context.Context, tenantID string, q BulkQuery, keyField string, keys []string) ([]Record, error) {
	if len(keys) == 0 {
		return []Record{}, nil
	}
	var all []Record
	for start := 0; start < len(keys); start += g.batchSize {
		end := start + g.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		bq := q
		bq.Filter = combineFilter(q.Filter, fmt.Sprintf("%s IN (%s)", keyField, strings.Join(keys[start:end], ",")))
		rows, err := g.LoadRecords(ctx, tenantID, bq)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		all = append(all, rows...)
	}
	return all, nil
}

func combineFilter(base, extra string) string {
	if base == "" {
		return extra
	}
	return "(" + base + ") AND " + extra
}
