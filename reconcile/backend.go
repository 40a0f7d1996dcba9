package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vitwit/invoicepay/types"
	"github.com/vitwit/invoicepay/utils"
)

// Backend is the invoice service contract the client consumes
type Backend interface {
	CreateInvoice(ctx context.Context, req *types.CreateInvoiceRequest) (*types.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*types.Invoice, error)
	VerifyPayment(ctx context.Context, id string, req *types.VerifyRequest) (*types.Invoice, error)
	CheckStatus(ctx context.Context, id string) (*types.Invoice, error)
	CancelInvoice(ctx context.Context, id string) (*types.Invoice, error)
}

var _ Backend = (*HTTPBackend)(nil)

// HTTPBackend talks to the invoice service over its JSON HTTP API
type HTTPBackend struct {
	baseURL *url.URL
	client  *http.Client
	headers map[string]string
}

// NewHTTPBackend creates a backend client rooted at baseURL
func NewHTTPBackend(baseURL string, client *http.Client, headers map[string]string) (*HTTPBackend, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, types.NewError(types.ErrConfigError, fmt.Sprintf("invalid backend url %q", baseURL))
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{baseURL: u, client: client, headers: headers}, nil
}

func (b *HTTPBackend) CreateInvoice(ctx context.Context, req *types.CreateInvoiceRequest) (*types.Invoice, error) {
	return b.do(ctx, http.MethodPost, "/invoices", req)
}

func (b *HTTPBackend) GetInvoice(ctx context.Context, id string) (*types.Invoice, error) {
	return b.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil)
}

func (b *HTTPBackend) VerifyPayment(ctx context.Context, id string, req *types.VerifyRequest) (*types.Invoice, error) {
	return b.do(ctx, http.MethodPost, "/invoices/"+url.PathEscape(id)+"/verify", req)
}

func (b *HTTPBackend) CheckStatus(ctx context.Context, id string) (*types.Invoice, error) {
	return b.do(ctx, http.MethodPost, "/invoices/"+url.PathEscape(id)+"/check-status", nil)
}

func (b *HTTPBackend) CancelInvoice(ctx context.Context, id string) (*types.Invoice, error) {
	return b.do(ctx, http.MethodPost, "/invoices/"+url.PathEscape(id)+"/cancel", nil)
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body any) (*types.Invoice, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL.String()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, types.WrapError(types.ErrNetworkError, fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.WrapError(types.ErrNetworkError, fmt.Sprintf("%s %s: reading response", method, path), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, data)
	}

	return utils.ParseInvoice(data)
}

func decodeError(status int, data []byte) error {
	apiErr := &types.InvoiceError{}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
		apiErr = &types.InvoiceError{
			Code:    codeForStatus(status),
			Message: strings.TrimSpace(string(data)),
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	apiErr.StatusCode = status
	return apiErr
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return types.ErrNotFound
	case status == http.StatusConflict:
		return types.ErrInvalidTransition
	case status == http.StatusGone:
		return types.ErrInvoiceExpired
	case status >= 400 && status < 500:
		return types.ErrInvalidInvoice
	default:
		return types.ErrNetworkError
	}
}
