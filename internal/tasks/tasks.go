package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type names. Reminder and report fan-out run on the periodic
// scheduler; history exports are queued on demand by the patient API.
const (
	TypeDailyReminders      = "reminder:daily"
	TypeMonthlyReportFanout = "report:monthly:all"
	TypeMonthlyReport       = "report:monthly"
	TypeExportHistory       = "export:patient_history"
)

// MonthlyReportPayload identifies the doctor a report run covers.
type MonthlyReportPayload struct {
	DoctorID uint `json:"doctor_id"`
}

// ExportHistoryPayload identifies the patient whose history is exported.
type ExportHistoryPayload struct {
	PatientID uint `json:"patient_id"`
}

// NewDailyRemindersTask builds the reminder fan-out task.
func NewDailyRemindersTask() *asynq.Task {
	return asynq.NewTask(TypeDailyReminders, nil)
}

// NewMonthlyReportFanoutTask builds the task that queues one report per doctor.
func NewMonthlyReportFanoutTask() *asynq.Task {
	return asynq.NewTask(TypeMonthlyReportFanout, nil)
}

// NewMonthlyReportTask builds a per-doctor report task.
func NewMonthlyReportTask(doctorID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(MonthlyReportPayload{DoctorID: doctorID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMonthlyReport, payload), nil
}

// NewExportHistoryTask builds a patient history export task.
func NewExportHistoryTask(patientID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ExportHistoryPayload{PatientID: patientID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExportHistory, payload), nil
}
