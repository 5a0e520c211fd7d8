// Package carrier is a thin client for the external shipping-rate API.
// It sits behind shipping.RateProvider; callers treat its failures as a
// signal to fall back to static options.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/mirrorexhibit/storefront/internal/domain/shipping"
)

var _ shipping.RateProvider = (*Client)(nil)

// Client calls the carrier's rate endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates a carrier Client. The HTTP timeout bounds the whole rate
// lookup; the checkout page degrades to static options past it.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type rateRequest struct {
	DestinationCountry  string     `json:"destination_country"`
	DestinationState    string     `json:"destination_state,omitempty"`
	DestinationCity     string     `json:"destination_city,omitempty"`
	DestinationPostcode string     `json:"destination_postcode,omitempty"`
	Items               []rateItem `json:"items"`
}

type rateItem struct {
	ProductID     string          `json:"product_id"`
	Quantity      int             `json:"quantity"`
	DeclaredValue decimal.Decimal `json:"declared_value"`
}

type rateResponse struct {
	Rates []struct {
		CourierName     string          `json:"courier_name"`
		ServiceName     string          `json:"service_name"`
		TotalCharge     decimal.Decimal `json:"total_charge"`
		MinDeliveryDays int             `json:"min_delivery_days"`
	} `json:"rates"`
}

// Rates fetches live shipping options for the destination and items.
func (c *Client) Rates(ctx context.Context, addr shipping.Address, items []shipping.RateItem) ([]shipping.Option, error) {
	reqBody := rateRequest{
		DestinationCountry:  addr.Country,
		DestinationState:    addr.State,
		DestinationCity:     addr.City,
		DestinationPostcode: addr.PostalCode,
		Items:               make([]rateItem, len(items)),
	}
	for i, item := range items {
		reqBody.Items[i] = rateItem{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			DeclaredValue: item.UnitPrice,
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "encode rate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rates", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build rate request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "carrier rate request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("carrier rate request: unexpected status %d", resp.StatusCode)
	}

	var decoded rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode rate response")
	}

	options := make([]shipping.Option, len(decoded.Rates))
	for i, rate := range decoded.Rates {
		options[i] = shipping.Option{
			Name:          rate.ServiceName,
			Carrier:       rate.CourierName,
			Price:         rate.TotalCharge.Round(2),
			EstimatedDays: rate.MinDeliveryDays,
		}
	}
	return options, nil
}
