// Package customers answers whether a customer exists, for account opening.
package customers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
)

// AllowAll accepts every customer id. It is used when no customer service is configured.
type AllowAll struct{}

var _ portssvc.CustomerDirectory = AllowAll{}

func (AllowAll) Exists(ctx context.Context, customerID string) (bool, error) {
	return customerID != "", nil
}

// HTTPDirectory asks the customer service: GET {baseURL}/api/v1/customers/{id}
// answers 200 for a known customer and 404 for an unknown one.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory creates a directory backed by the customer service. A nil client gets a 5 second timeout.
func NewHTTPDirectory(baseURL string, client *http.Client) *HTTPDirectory {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPDirectory{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

var _ portssvc.CustomerDirectory = (*HTTPDirectory)(nil)

func (d *HTTPDirectory) Exists(ctx context.Context, customerID string) (bool, error) {
	endpoint := d.baseURL + "/api/v1/customers/" + url.PathEscape(customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("building customer lookup: %w", err)
	}
	if requestID := middleware.GetRequestIDFromCtx(ctx); requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: customer lookup: %v", apperrors.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return false, fmt.Errorf("%w: customer service answered %d", apperrors.ErrTransient, resp.StatusCode)
	default:
		return false, fmt.Errorf("customer service answered %d", resp.StatusCode)
	}
}
