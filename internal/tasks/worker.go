package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/models"
)

// Worker executes background jobs. Every handler recomputes its output from
// current state, so a retried delivery is harmless; a failed run produces no
// output and is retried by the queue.
type Worker struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Queue *asynq.Client
	Log   zerolog.Logger
}

// NewWorker creates a Worker.
func NewWorker(db *gorm.DB, cfg *config.Config, queue *asynq.Client, log zerolog.Logger) *Worker {
	return &Worker{DB: db, Cfg: cfg, Queue: queue, Log: log}
}

// Mux wires the worker's handlers onto an asynq mux.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDailyReminders, w.HandleDailyReminders)
	mux.HandleFunc(TypeMonthlyReportFanout, w.HandleMonthlyReportFanout)
	mux.HandleFunc(TypeMonthlyReport, w.HandleMonthlyReport)
	mux.HandleFunc(TypeExportHistory, w.HandleExportHistory)
	return mux
}

// HandleDailyReminders sends a reminder for every Booked appointment
// falling on the next calendar day.
func (w *Worker) HandleDailyReminders(ctx context.Context, _ *asynq.Task) error {
	now := time.Now().In(w.Cfg.Location)
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, w.Cfg.Location).AddDate(0, 0, 1)

	var appts []models.Appointment
	err := w.DB.WithContext(ctx).
		Preload("Patient").Preload("Patient.User").
		Preload("Doctor").Preload("Doctor.User").
		Where("date_time >= ? AND date_time < ? AND status = ?",
			tomorrow, tomorrow.AddDate(0, 0, 1), models.StatusBooked).
		Find(&appts).Error
	if err != nil {
		return fmt.Errorf("load tomorrow's appointments: %w", err)
	}

	for _, appt := range appts {
		message := BuildReminderMessage(
			appt.Patient.User.Username,
			appt.Doctor.User.Username,
			appt.DateTime.In(w.Cfg.Location),
		)
		// Delivery is a collaborator concern; the core emits the payload.
		w.Log.Info().
			Str("recipient", appt.Patient.User.Email).
			Uint("appointment_id", appt.ID).
			Str("message", message).
			Msg("appointment reminder dispatched")
	}

	w.Log.Info().Int("count", len(appts)).Msg("daily reminders sent")
	return nil
}

// HandleMonthlyReportFanout queues one monthly report task per doctor.
func (w *Worker) HandleMonthlyReportFanout(ctx context.Context, _ *asynq.Task) error {
	var doctorIDs []uint
	if err := w.DB.WithContext(ctx).Model(&models.Doctor{}).Pluck("id", &doctorIDs).Error; err != nil {
		return fmt.Errorf("load doctor roster: %w", err)
	}

	for _, id := range doctorIDs {
		task, err := NewMonthlyReportTask(id)
		if err != nil {
			return err
		}
		if _, err := w.Queue.EnqueueContext(ctx, task); err != nil {
			return fmt.Errorf("enqueue report for doctor %d: %w", id, err)
		}
	}

	w.Log.Info().Int("doctors", len(doctorIDs)).Msg("monthly report fan-out queued")
	return nil
}

// HandleMonthlyReport writes last month's activity report for one doctor.
func (w *Worker) HandleMonthlyReport(ctx context.Context, t *asynq.Task) error {
	var payload MonthlyReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	var doctor models.Doctor
	if err := w.DB.WithContext(ctx).Preload("User").First(&doctor, "id = ?", payload.DoctorID).Error; err != nil {
		return fmt.Errorf("load doctor %d: %w", payload.DoctorID, err)
	}

	now := time.Now().In(w.Cfg.Location)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, w.Cfg.Location)
	prevMonthStart := monthStart.AddDate(0, -1, 0)

	var appts []models.Appointment
	err := w.DB.WithContext(ctx).
		Preload("Patient").Preload("Patient.User").
		Where("doctor_id = ? AND date_time >= ? AND date_time < ?",
			doctor.ID, prevMonthStart, monthStart).
		Order("date_time asc").
		Find(&appts).Error
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}

	data := MonthlyReportData{
		DoctorName: doctor.User.Username,
		Period:     prevMonthStart,
		Total:      len(appts),
	}
	for _, appt := range appts {
		switch appt.Status {
		case models.StatusCompleted:
			data.Completed++
		case models.StatusCancelled:
			data.Cancelled++
		}
		data.Rows = append(data.Rows, ReportRow{
			DateTime:    appt.DateTime.In(w.Cfg.Location),
			PatientName: appt.Patient.User.Username,
			Status:      string(appt.Status),
			Diagnosis:   appt.Diagnosis,
		})
	}

	html, err := BuildMonthlyReportHTML(data)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if err := os.MkdirAll(w.Cfg.ReportsDir, 0o755); err != nil {
		return err
	}
	filename := filepath.Join(w.Cfg.ReportsDir,
		fmt.Sprintf("monthly_report_doctor_%d_%s.html", doctor.ID, prevMonthStart.Format("2006_01")))
	if err := os.WriteFile(filename, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	w.Log.Info().Str("file", filename).Uint("doctor_id", doctor.ID).Msg("monthly report generated")
	return nil
}

// HandleExportHistory writes a patient's completed treatment history as CSV.
func (w *Worker) HandleExportHistory(ctx context.Context, t *asynq.Task) error {
	var payload ExportHistoryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	var appts []models.Appointment
	err := w.DB.WithContext(ctx).
		Preload("Doctor").Preload("Doctor.User").
		Where("patient_id = ? AND status = ?", payload.PatientID, models.StatusCompleted).
		Order("date_time asc").
		Find(&appts).Error
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	rows := make([]HistoryRow, len(appts))
	for i, appt := range appts {
		rows[i] = HistoryRow{
			AppointmentID:  appt.ID,
			DateTime:       appt.DateTime.In(w.Cfg.Location),
			DoctorName:     appt.Doctor.User.Username,
			Specialization: appt.Doctor.Specialization,
			Diagnosis:      appt.Diagnosis,
			Prescription:   appt.Prescription,
			Notes:          appt.Notes,
		}
	}

	content, err := BuildPatientHistoryCSV(rows)
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}

	if err := os.MkdirAll(w.Cfg.ExportsDir, 0o755); err != nil {
		return err
	}
	filename := filepath.Join(w.Cfg.ExportsDir,
		fmt.Sprintf("patient_%d_history.csv", payload.PatientID))
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	w.Log.Info().Str("file", filename).Uint("patient_id", payload.PatientID).Msg("history export written")
	return nil
}
