// Package provider implements the outbound payment-provider client (C3) and
// the withdrawal payout adapter (C6), both ChAPA-shaped per spec.md §6.2.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/addispay/wallet-server/internal/circuitbreaker"
	"github.com/addispay/wallet-server/internal/config"
	"github.com/addispay/wallet-server/internal/httputil"
	"github.com/addispay/wallet-server/internal/money"
)

// Errors surfaced to callers, mapped onto the taxonomy in spec.md §7.
var (
	// ErrUnavailable means the provider could not be reached or returned a
	// transient/5xx failure; the caller may retry (PROVIDER_UNAVAILABLE).
	ErrUnavailable = errors.New("provider: unavailable")
	// ErrRejected means the provider returned a definitive 4xx rejection;
	// retrying unchanged will not help (PROVIDER_REJECTED).
	ErrRejected = errors.New("provider: rejected")
)

// Customer is the sanitized subset of user profile fields the provider accepts.
type Customer struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string // optional, included only if it matches the regional format
}

// InitiateRequest is the outbound shape for starting a checkout (spec.md §6.2).
type InitiateRequest struct {
	AmountETB   money.ETB
	TxRef       string
	CallbackURL string
	ReturnURL   string
	Title       string // customization.title, truncated to 16 chars
	Description string // customization.description, truncated to 50 chars
	Customer    Customer
	Meta        map[string]string
}

// InitiateResult is what C3 persists onto the Payment row.
type InitiateResult struct {
	CheckoutURL string
	ProviderRef string
}

// VerifyResult mirrors the provider's transaction/verify response (spec.md §6.2).
type VerifyResult struct {
	Success     bool
	ProviderRef string
	GwFeeETB    money.ETB // zero if the provider did not report one (see C4 fallback)
	HasGwFee    bool
}

// Client calls the external payment provider's initiate/verify endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	breaker    *circuitbreaker.Manager
}

// NewClient builds a provider Client from config (spec.md §6.4).
func NewClient(cfg config.ProviderConfig, breaker *circuitbreaker.Manager) *Client {
	timeout := cfg.ConnectTimeout.Duration + cfg.ReadTimeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: httputil.NewClient(timeout),
		baseURL:    cfg.BaseURL,
		secretKey:  cfg.SecretKey,
		breaker:    breaker,
	}
}

var phoneRegex = regexp.MustCompile(`^(09|07)\d{8}$`)

// SanitizeCustomer strips any phone number that doesn't match the regional
// format before it is sent to the provider (spec.md §4.3).
func SanitizeCustomer(c Customer) Customer {
	out := c
	if !phoneRegex.MatchString(out.Phone) {
		out.Phone = ""
	}
	return out
}

type initiateWireRequest struct {
	Amount          string            `json:"amount"`
	Currency        string            `json:"currency"`
	Email           string            `json:"email"`
	FirstName       string            `json:"first_name"`
	LastName        string            `json:"last_name"`
	Phone           string            `json:"phone_number,omitempty"`
	TxRef           string            `json:"tx_ref"`
	CallbackURL     string            `json:"callback_url"`
	ReturnURL       string            `json:"return_url"`
	Customization   customizationWire `json:"customization"`
	Meta            map[string]string `json:"meta"`
}

type customizationWire struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type initiateWireResponse struct {
	Status string `json:"status"`
	Data   struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// Initiate calls the provider's checkout-initiation endpoint (spec.md §4.3 step 3, §6.2).
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	customer := SanitizeCustomer(req.Customer)

	wire := initiateWireRequest{
		Amount:      req.AmountETB.String(),
		Currency:    "ETB",
		Email:       customer.Email,
		FirstName:   customer.FirstName,
		LastName:    customer.LastName,
		Phone:       customer.Phone,
		TxRef:       req.TxRef,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Customization: customizationWire{
			Title:       truncate(req.Title, 16),
			Description: truncate(req.Description, 50),
		},
		Meta: req.Meta,
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("%w: marshal initiate request: %v", ErrRejected, err)
	}

	result, err := c.execute(ctx, circuitbreaker.ServicePaymentProvider, "POST", "/v1/transaction/initialize", body)
	if err != nil {
		return InitiateResult{}, err
	}

	var resp initiateWireResponse
	if err := json.Unmarshal(result, &resp); err != nil {
		return InitiateResult{}, fmt.Errorf("%w: decode initiate response: %v", ErrUnavailable, err)
	}
	if resp.Status != "success" || resp.Data.CheckoutURL == "" {
		return InitiateResult{}, fmt.Errorf("%w: provider returned status %q", ErrRejected, resp.Status)
	}

	return InitiateResult{
		CheckoutURL: resp.Data.CheckoutURL,
		ProviderRef: req.TxRef,
	}, nil
}

type verifyWireResponse struct {
	Status string `json:"status"`
	Data   struct {
		Status    string  `json:"status"`
		Reference string  `json:"reference"`
		Charge    float64 `json:"charge,omitempty"`
	} `json:"data"`
}

// Verify re-checks a transaction's settlement status server-to-server
// (spec.md §4.4 step 3, §6.2). Success requires both the outer and inner
// "status" fields to equal "success".
func (c *Client) Verify(ctx context.Context, txRef string) (VerifyResult, error) {
	result, err := c.execute(ctx, circuitbreaker.ServicePaymentProvider, "GET", "/v1/transaction/verify/"+txRef, nil)
	if err != nil {
		return VerifyResult{}, err
	}

	var resp verifyWireResponse
	if err := json.Unmarshal(result, &resp); err != nil {
		return VerifyResult{}, fmt.Errorf("%w: decode verify response: %v", ErrUnavailable, err)
	}

	success := resp.Status == "success" && resp.Data.Status == "success"
	vr := VerifyResult{Success: success, ProviderRef: resp.Data.Reference}
	if resp.Data.Charge > 0 {
		vr.GwFeeETB = money.FromFloat(resp.Data.Charge)
		vr.HasGwFee = true
	}
	return vr, nil
}

// execute performs one HTTP round trip through the circuit breaker,
// classifying the outcome into ErrUnavailable/ErrRejected per spec.md §7.
func (c *Client) execute(ctx context.Context, service circuitbreaker.ServiceType, method, path string, body []byte) ([]byte, error) {
	op := func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %v", ErrRejected, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
		}

		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: provider status %d", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%w: provider status %d", ErrRejected, resp.StatusCode)
		}
		return data, nil
	}

	if c.breaker == nil {
		data, err := op()
		if err != nil {
			return nil, err
		}
		return data.([]byte), nil
	}

	result, err := c.breaker.Execute(service, op)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrRejected) {
			// Open-breaker / gobreaker-internal errors surface as unavailable.
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return result.([]byte), nil
}
