package tasks

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// ReportRow is one appointment line in a monthly activity report.
type ReportRow struct {
	DateTime    time.Time
	PatientName string
	Status      string
	Diagnosis   string
}

// MonthlyReportData feeds the monthly activity report template.
type MonthlyReportData struct {
	DoctorName string
	Period     time.Time // first day of the reported month
	Total      int
	Completed  int
	Cancelled  int
	Rows       []ReportRow
}

var reportTemplate = template.Must(template.New("monthly-report").Funcs(template.FuncMap{
	"month": func(t time.Time) string { return t.Format("January 2006") },
	"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"orNA": func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	},
}).Parse(`<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        h1 { color: #333; }
        table { border-collapse: collapse; width: 100%; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
        th { background-color: #4CAF50; color: white; }
        .summary { background-color: #f2f2f2; padding: 15px; margin: 20px 0; }
    </style>
</head>
<body>
    <h1>Monthly Activity Report - Dr. {{.DoctorName}}</h1>
    <p><strong>Period:</strong> {{month .Period}}</p>

    <div class="summary">
        <h2>Summary</h2>
        <p>Total Appointments: {{.Total}}</p>
        <p>Completed: {{.Completed}}</p>
        <p>Cancelled: {{.Cancelled}}</p>
    </div>

    <h2>Appointment Details</h2>
    <table>
        <tr>
            <th>Date</th>
            <th>Patient</th>
            <th>Status</th>
            <th>Diagnosis</th>
        </tr>
{{- range .Rows}}
        <tr>
            <td>{{stamp .DateTime}}</td>
            <td>{{.PatientName}}</td>
            <td>{{.Status}}</td>
            <td>{{orNA .Diagnosis}}</td>
        </tr>
{{- end}}
    </table>
</body>
</html>
`))

// BuildMonthlyReportHTML renders the doctor's monthly activity report.
func BuildMonthlyReportHTML(data MonthlyReportData) (string, error) {
	var buf strings.Builder
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HistoryRow is one completed consultation in a patient's CSV export.
type HistoryRow struct {
	AppointmentID  uint
	DateTime       time.Time
	DoctorName     string
	Specialization string
	Diagnosis      string
	Prescription   string
	Notes          string
}

// BuildPatientHistoryCSV renders a patient's completed treatment history.
func BuildPatientHistoryCSV(rows []HistoryRow) (string, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	header := []string{
		"Appointment ID",
		"Date",
		"Doctor",
		"Specialization",
		"Diagnosis",
		"Prescription",
		"Notes",
	}
	if err := writer.Write(header); err != nil {
		return "", err
	}
	for _, row := range rows {
		record := []string{
			fmt.Sprintf("%d", row.AppointmentID),
			row.DateTime.Format("2006-01-02 15:04"),
			row.DoctorName,
			row.Specialization,
			row.Diagnosis,
			row.Prescription,
			row.Notes,
		}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildReminderMessage renders the reminder sent the day before an
// appointment.
func BuildReminderMessage(patientName, doctorName string, at time.Time) string {
	return fmt.Sprintf(
		"Dear %s,\n\nThis is a reminder for your appointment tomorrow.\n\nDoctor: Dr. %s\nTime: %s\n\nPlease arrive 15 minutes early.\n\nBest regards,\nHospital Management System",
		patientName, doctorName, at.Format("03:04 PM"),
	)
}
