// internal/clients/catalog_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"farmmarket/internal/catalog"
	"farmmarket/internal/fault"
)

// CatalogClient talks to a remote listing catalog over HTTP. It satisfies
// catalog.Service so deployments can run against an external catalog instead
// of the in-process one.
type CatalogClient struct {
	client *resty.Client
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		client: resty.New().
			SetBaseURL(baseURL).
			SetRetryCount(2),
	}
}

func (c *CatalogClient) GetListing(ctx context.Context, id uuid.UUID) (*catalog.Listing, error) {
	var listing catalog.Listing
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&listing).
		Get(fmt.Sprintf("/listings/%s", id))
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("listing %s: %w", id, fault.ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch listing: unexpected status %d", resp.StatusCode())
	}
	return &listing, nil
}

func (c *CatalogClient) SetStatus(ctx context.Context, id uuid.UUID, status catalog.ListingStatus) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"status": string(status)}).
		Patch(fmt.Sprintf("/listings/%s/status", id))
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("listing %s: %w", id, fault.ErrNotFound)
	}
	if resp.IsError() {
		return fmt.Errorf("update listing status: unexpected status %d", resp.StatusCode())
	}
	return nil
}
