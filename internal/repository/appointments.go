package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// AppointmentRepo keeps a local record of bookings made through the agent.
type AppointmentRepo struct {
	conn *sqlx.DB
}

func NewAppointmentRepo(conn *sqlx.DB) *AppointmentRepo {
	return &AppointmentRepo{conn: conn}
}

// Insert stores one booked appointment.
func (r *AppointmentRepo) Insert(ctx context.Context, appt models.Appointment) error {
	_, err := r.conn.NamedExecContext(ctx, `INSERT INTO appointments
		(id, company_id, remote_jid, start_time, customer_name, customer_phone,
		 specialist_id, type_id, notes, external_event_id, external_link, created_at)
		VALUES (:id, :company_id, :remote_jid, :start_time, :customer_name, :customer_phone,
		 :specialist_id, :type_id, :notes, :external_event_id, :external_link, :created_at)`, appt)
	if err != nil {
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}
