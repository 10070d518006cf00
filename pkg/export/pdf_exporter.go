package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/campus-routine-api/internal/routine"
)

const (
	pageWidth   = 277.0
	timeColumn  = 27.0
	headerRow   = 8.0
	sessionRow  = 18.0
	cellPadding = 1.0
)

// PDFExporter renders a routine as a weekly grid: periods down, days across.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderRoutine draws the routine's shift grid. Sessions spanning several
// periods are drawn as one tall cell.
func (e *PDFExporter) RenderRoutine(r routine.Routine, title string) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(false, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, strings.ToUpper(title), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s | Semester %s | Shift %s | Group %s", r.Department, r.Semester, r.Shift, r.Group), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	grid := routine.NewGrid(r.Shift)
	dayWidth := (pageWidth - timeColumn) / float64(len(routine.Weekdays))
	left, top := pdf.GetX(), pdf.GetY()

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(timeColumn, headerRow, "Time", "1", 0, "C", true, 0, "")
	for _, d := range routine.Weekdays {
		pdf.CellFormat(dayWidth, headerRow, string(d), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for i := 0; i < grid.Len(); i++ {
		slot := grid.Slot(i)
		y := top + headerRow + float64(i)*sessionRow
		pdf.Rect(left, y, timeColumn, sessionRow, "D")
		pdf.SetXY(left, y+sessionRow/2-2)
		pdf.CellFormat(timeColumn, 4, slot.Start+" - "+slot.End, "", 0, "C", false, 0, "")
		for di := range routine.Weekdays {
			pdf.Rect(left+timeColumn+float64(di)*dayWidth, y, dayWidth, sessionRow, "D")
		}
	}

	for di, name := range routine.Weekdays {
		for _, d := range r.Days {
			if !strings.EqualFold(string(d.Name), string(name)) {
				continue
			}
			for _, s := range d.Classes {
				first := grid.IndexOf(s.StartTime)
				span := grid.Span(s.StartTime, s.EndTime)
				if first < 0 || span <= 0 {
					continue
				}
				x := left + timeColumn + float64(di)*dayWidth
				y := top + headerRow + float64(first)*sessionRow
				if s.Type == routine.Lab {
					pdf.SetFillColor(220, 235, 250)
				} else {
					pdf.SetFillColor(255, 255, 255)
				}
				pdf.Rect(x, y, dayWidth, float64(span)*sessionRow, "FD")
				pdf.SetXY(x+cellPadding, y+cellPadding)
				pdf.MultiCell(dayWidth-2*cellPadding, 3.8, sessionLabel(s), "", "C", false)
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sessionLabel(s routine.Session) string {
	subject := s.Subject
	if s.SubjectCode != "" {
		subject = s.SubjectCode + " " + subject
	}
	lines := []string{subject, s.Teacher, "Room: " + s.Room}
	if s.Type == routine.Lab {
		lines[0] += " (Lab)"
	}
	if s.IsMerged {
		lines = append(lines, "combined")
	}
	return strings.Join(lines, "\n")
}
