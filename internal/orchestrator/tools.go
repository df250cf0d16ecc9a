package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

const (
	toolListProducts      = "list_available_products"
	toolCheckAvailability = "check_availability"
	toolBookAppointment   = "book_appointment"
)

// BusyInterval is one occupied slot returned by the calendar collaborator.
type BusyInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Availability is the calendar's answer for a requested day.
type Availability struct {
	Busy            []BusyInterval `json:"busy"`
	DurationMinutes int            `json:"durationMinutes"`
	Timezone        string         `json:"timezone"`
}

// BookingRequest carries the event-creation parameters.
type BookingRequest struct {
	StartTime     time.Time
	CustomerName  string
	CustomerPhone string
	SpecialistID  string
	TypeID        string
	Notes         string
}

// BookingResult is the created calendar event.
type BookingResult struct {
	EventID string
	Link    string
}

// Calendar is the external free/busy and event-creation collaborator,
// scoped by tenant.
type Calendar interface {
	FreeBusy(ctx context.Context, tenant *models.TenantConfig, date, specialistID, typeID string) (Availability, error)
	CreateEvent(ctx context.Context, tenant *models.TenantConfig, req BookingRequest) (BookingResult, error)
}

// AppointmentStore persists booked appointments.
type AppointmentStore interface {
	Insert(ctx context.Context, appt models.Appointment) error
}

// ToolRunner executes model-requested tool calls. Every outcome, success or
// failure, becomes a structured JSON result; failures never propagate past
// this boundary.
type ToolRunner struct {
	calendar     Calendar
	appointments AppointmentStore
}

func NewToolRunner(calendar Calendar, appointments AppointmentStore) *ToolRunner {
	return &ToolRunner{calendar: calendar, appointments: appointments}
}

// ToolDefinitions returns the fixed tool schema offered to the model.
func ToolDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolListProducts,
				Description: "Lista os produtos e serviços ativos do catálogo atual. Use sempre que o cliente perguntar o que está disponível.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"type": map[string]interface{}{
							"type":        "string",
							"enum":        []string{"produto", "servico"},
							"description": "Filtra por tipo de item",
						},
					},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolCheckAvailability,
				Description: "Consulta os horários ocupados da agenda em uma data.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"date":         map[string]interface{}{"type": "string", "description": "Data no formato YYYY-MM-DD"},
						"specialistId": map[string]interface{}{"type": "string"},
						"typeId":       map[string]interface{}{"type": "string"},
					},
					"required": []string{"date"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolBookAppointment,
				Description: "Cria um agendamento na agenda e retorna a confirmação.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"startTime":     map[string]interface{}{"type": "string", "description": "Início no formato RFC3339"},
						"customerName":  map[string]interface{}{"type": "string"},
						"customerPhone": map[string]interface{}{"type": "string"},
						"specialistId":  map[string]interface{}{"type": "string"},
						"typeId":        map[string]interface{}{"type": "string"},
						"notes":         map[string]interface{}{"type": "string"},
					},
					"required": []string{"startTime", "customerName", "customerPhone"},
				},
			},
		},
	}
}

// Execute runs one tool call and returns its JSON result.
func (r *ToolRunner) Execute(ctx context.Context, tenant *models.TenantConfig, remoteJID, name, rawArgs string) string {
	switch name {
	case toolListProducts:
		return r.listProducts(tenant, rawArgs)
	case toolCheckAvailability:
		return r.checkAvailability(ctx, tenant, rawArgs)
	case toolBookAppointment:
		return r.bookAppointment(ctx, tenant, remoteJID, rawArgs)
	default:
		return errorResult(fmt.Sprintf("ferramenta desconhecida: %s", name))
	}
}

type productProjection struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Type              string `json:"type"`
	Price             string `json:"price,omitempty"`
	PriceHidden       bool   `json:"priceHidden"`
	HasImage          bool   `json:"hasImage"`
	VisualInstruction string `json:"visualInstruction,omitempty"`
	HasVariations     bool   `json:"hasVariations"`
	VariationCount    int    `json:"variationCount"`
}

// listProducts projects the current catalog state. It deliberately ignores
// conversation history: availability always reflects the catalog as of now.
func (r *ToolRunner) listProducts(tenant *models.TenantConfig, rawArgs string) string {
	var args struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal([]byte(rawArgs), &args)

	items := make([]productProjection, 0, len(tenant.Catalog))
	for _, p := range tenant.Catalog {
		if !p.Active || p.CompanyID != tenant.CompanyID {
			continue
		}
		if args.Type != "" && p.Kind != args.Type {
			continue
		}
		proj := productProjection{
			ID:             p.ID,
			Name:           p.Name,
			Type:           p.Kind,
			PriceHidden:    p.PriceHidden,
			HasImage:       p.Image != "",
			HasVariations:  len(p.Variants) > 0,
			VariationCount: len(p.Variants),
		}
		if !p.PriceHidden {
			proj.Price = "R$ " + models.FormatPrice(p.Price)
		}
		if p.Image != "" {
			proj.VisualInstruction = fmt.Sprintf("use [SHOW_IMAGE: %s] para mostrar a foto deste item", p.ID)
		}
		items = append(items, proj)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"success": true,
		"items":   items,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return string(payload)
}

func (r *ToolRunner) checkAvailability(ctx context.Context, tenant *models.TenantConfig, rawArgs string) string {
	var args struct {
		Date         string `json:"date"`
		SpecialistID string `json:"specialistId"`
		TypeID       string `json:"typeId"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil || args.Date == "" {
		return errorResult("parâmetro date é obrigatório")
	}

	avail, err := r.calendar.FreeBusy(ctx, tenant, args.Date, args.SpecialistID, args.TypeID)
	if err != nil {
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Str("date", args.Date).Msg("Calendar free/busy query failed")
		return errorResult("não foi possível consultar a agenda agora")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"success":         true,
		"date":            args.Date,
		"busy":            avail.Busy,
		"durationMinutes": avail.DurationMinutes,
		"timezone":        avail.Timezone,
	})
	return string(payload)
}

func (r *ToolRunner) bookAppointment(ctx context.Context, tenant *models.TenantConfig, remoteJID, rawArgs string) string {
	var args struct {
		StartTime     string `json:"startTime"`
		CustomerName  string `json:"customerName"`
		CustomerPhone string `json:"customerPhone"`
		SpecialistID  string `json:"specialistId"`
		TypeID        string `json:"typeId"`
		Notes         string `json:"notes"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return errorResult("argumentos inválidos para agendamento")
	}
	start, err := time.Parse(time.RFC3339, args.StartTime)
	if err != nil {
		return errorResult("startTime deve estar no formato RFC3339")
	}
	if args.CustomerName == "" || args.CustomerPhone == "" {
		return errorResult("customerName e customerPhone são obrigatórios")
	}

	result, err := r.calendar.CreateEvent(ctx, tenant, BookingRequest{
		StartTime:     start,
		CustomerName:  args.CustomerName,
		CustomerPhone: args.CustomerPhone,
		SpecialistID:  args.SpecialistID,
		TypeID:        args.TypeID,
		Notes:         args.Notes,
	})
	if err != nil {
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Msg("Calendar event creation failed")
		return errorResult("não foi possível criar o agendamento agora")
	}

	appt := models.Appointment{
		ID:              uuid.NewString(),
		CompanyID:       tenant.CompanyID,
		RemoteJID:       remoteJID,
		StartTime:       start,
		CustomerName:    args.CustomerName,
		CustomerPhone:   args.CustomerPhone,
		SpecialistID:    args.SpecialistID,
		TypeID:          args.TypeID,
		Notes:           args.Notes,
		ExternalEventID: result.EventID,
		ExternalLink:    result.Link,
		CreatedAt:       time.Now(),
	}
	if err := r.appointments.Insert(ctx, appt); err != nil {
		// The calendar event exists; losing the local record is logged, not fatal.
		log.Error().Err(err).Str("companyID", tenant.CompanyID).Str("eventID", result.EventID).Msg("Failed to persist appointment record")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"eventId": result.EventID,
		"link":    result.Link,
		"message": "agendamento confirmado",
	})
	return string(payload)
}

func errorResult(msg string) string {
	payload, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"error":   msg,
	})
	return string(payload)
}
