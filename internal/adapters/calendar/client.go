// Package calendar wraps the external scheduling API used by the booking tools.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
	"github.com/HugoGarcez/agentpromp-sub000/internal/orchestrator"
)

// Client talks to the scheduling backend on behalf of a tenant.
type Client struct {
	httpClient *resty.Client
}

func NewClient(baseURL, apiKey string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetTimeout(15 * time.Second)
	return &Client{httpClient: httpClient}
}

type freeBusyResponse struct {
	Busy            []orchestrator.BusyInterval `json:"busy"`
	DurationMinutes int                         `json:"durationMinutes"`
	Timezone        string                      `json:"timezone"`
}

// FreeBusy returns the occupied slots for one day.
func (c *Client) FreeBusy(ctx context.Context, tenant *models.TenantConfig, date, specialistID, typeID string) (orchestrator.Availability, error) {
	var result freeBusyResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"companyId":    tenant.CompanyID,
			"date":         date,
			"specialistId": specialistID,
			"typeId":       typeID,
		}).
		SetResult(&result).
		Get("/api/v1/availability")

	if err != nil {
		return orchestrator.Availability{}, fmt.Errorf("free/busy request failed: %w", err)
	}
	if resp.IsError() {
		return orchestrator.Availability{}, fmt.Errorf("free/busy error: status %s, body: %s", resp.Status(), resp.String())
	}

	log.Debug().Str("companyID", tenant.CompanyID).Str("date", date).Int("busySlots", len(result.Busy)).Msg("Fetched calendar availability")
	return orchestrator.Availability{
		Busy:            result.Busy,
		DurationMinutes: result.DurationMinutes,
		Timezone:        result.Timezone,
	}, nil
}

type createEventRequest struct {
	CompanyID     string `json:"companyId"`
	StartTime     string `json:"startTime"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	SpecialistID  string `json:"specialistId,omitempty"`
	TypeID        string `json:"typeId,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type createEventResponse struct {
	EventID string `json:"eventId"`
	Link    string `json:"link"`
}

// CreateEvent books a slot and returns the created event reference.
func (c *Client) CreateEvent(ctx context.Context, tenant *models.TenantConfig, req orchestrator.BookingRequest) (orchestrator.BookingResult, error) {
	var result createEventResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(createEventRequest{
			CompanyID:     tenant.CompanyID,
			StartTime:     req.StartTime.Format(time.RFC3339),
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			SpecialistID:  req.SpecialistID,
			TypeID:        req.TypeID,
			Notes:         req.Notes,
		}).
		SetResult(&result).
		Post("/api/v1/events")

	if err != nil {
		return orchestrator.BookingResult{}, fmt.Errorf("event creation request failed: %w", err)
	}
	if resp.IsError() {
		return orchestrator.BookingResult{}, fmt.Errorf("event creation error: status %s, body: %s", resp.Status(), resp.String())
	}

	log.Info().Str("companyID", tenant.CompanyID).Str("eventID", result.EventID).Msg("Created calendar event")
	return orchestrator.BookingResult{EventID: result.EventID, Link: result.Link}, nil
}
