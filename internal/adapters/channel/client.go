// Package channel wraps the messaging-channel provider admin API, used to
// verify which connection a given owner number belongs to.
package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client queries the provider's instance registry.
type Client struct {
	httpClient *resty.Client
}

func NewClient(baseURL, adminKey string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("apikey", adminKey).
		SetTimeout(10 * time.Second)
	return &Client{httpClient: httpClient}
}

type instanceEntry struct {
	Name        string `json:"name"`
	OwnerJID    string `json:"ownerJid"`
	ConnectionS string `json:"connectionStatus"`
}

// LookupOwner returns the connection name registered for ownerNumber. An
// apiKey from the tenant overrides the admin key for the call.
func (c *Client) LookupOwner(ctx context.Context, apiKey, ownerNumber string) (string, error) {
	var instances []instanceEntry
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("number", ownerNumber).
		SetResult(&instances)
	if apiKey != "" {
		req.SetHeader("apikey", apiKey)
	}

	resp, err := req.Get("/instance/fetchInstances")
	if err != nil {
		return "", fmt.Errorf("instance lookup request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("instance lookup error: status %s, body: %s", resp.Status(), resp.String())
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("no instance registered for number %s", ownerNumber)
	}

	log.Debug().Str("ownerNumber", ownerNumber).Str("instance", instances[0].Name).Msg("Resolved channel instance")
	return instances[0].Name, nil
}
