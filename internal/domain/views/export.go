package views

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

var directoryCSVHeader = []string{"id", "name", "email", "phone_number", "team", "department", "designation", "manager_name", "joining_date", "active"}

func WriteDirectoryCSV(w io.Writer, dir Directory) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(directoryCSVHeader); err != nil {
		return err
	}
	for _, emp := range dir.Employees {
		joined := ""
		if emp.CompanyJoiningDate != nil {
			joined = emp.CompanyJoiningDate.Format("2006-01-02")
		}
		record := []string{
			strconv.FormatInt(emp.ID, 10),
			emp.Name,
			emp.Email,
			emp.PhoneNumber,
			emp.Team,
			emp.Department,
			emp.Designation,
			emp.ManagerName,
			joined,
			strconv.FormatBool(emp.UserStatus),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// RosterFileName is the download name for a roster generated at t.
func RosterFileName(t time.Time) string {
	return "team-roster-" + t.UTC().Format("20060102-150405") + ".pdf"
}

// WriteRosterPDF renders one section per team with its imported members.
func WriteRosterPDF(w io.Writer, browser TeamBrowser, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Team Roster")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 6, "Generated "+generatedAt.UTC().Format("2006-01-02 15:04 MST"))
	pdf.Ln(10)

	for _, team := range browser.Teams {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, fmt.Sprintf("%s (%d)", team.Name, len(team.Members)))
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 10)
		if len(team.Members) == 0 {
			pdf.Cell(0, 6, "No imported members")
			pdf.Ln(8)
			continue
		}
		for _, emp := range team.Members {
			pdf.CellFormat(60, 6, emp.Name, "", 0, "L", false, 0, "")
			pdf.CellFormat(70, 6, emp.Email, "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, emp.Designation, "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}
	return pdf.Output(w)
}
