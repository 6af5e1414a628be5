package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/fdg312/nutrition-planner/internal/mealplans"
	"github.com/fdg312/nutrition-planner/internal/nutrition"
	"github.com/jung-kurt/gofpdf"
)

var csvHeader = []string{
	"date", "weekday", "meal_type", "meal_name", "portions",
	"calories", "protein", "carbs", "fat", "fiber",
	"missing", "warning", "conflicts",
}

// RenderCSV writes one row per grid cell plus a "total" row per day.
// Empty cells are kept so the export always has 7×(slots+1) data rows.
func RenderCSV(week mealplans.Week) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, day := range week.Days {
		for _, cell := range day.Cells {
			row := []string{day.Date, day.Weekday, string(cell.Slot), "", ""}
			if cell.Entry != nil {
				row[3] = cell.Entry.MealName
				row[4] = formatNumber(cell.Entry.Portions)
			}
			row = append(row, totalsColumns(cell.Totals)...)
			row = append(row, cell.Warning, conflictsColumn(cell.Conflicts))
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}

		totals := day.Totals
		row := []string{day.Date, day.Weekday, "total", "", ""}
		row = append(row, totalsColumns(&totals)...)
		row = append(row, "", "")
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func totalsColumns(t *nutrition.Totals) []string {
	if t == nil {
		return []string{"", "", "", "", "", ""}
	}
	return []string{
		formatNumber(t.Calories),
		formatNumber(t.Protein),
		formatNumber(t.Carbs),
		formatNumber(t.Fat),
		formatNumber(t.Fiber),
		strings.Join(t.Missing, ";"),
	}
}

func conflictsColumn(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RenderPDF draws the week as a landscape table: one row per day,
// one column per slot, then the day totals.
func RenderPDF(week mealplans.Week) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Meal plan %s - %s", week.Start, week.End), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Meal plan: %s - %s", week.Start, week.End))
	pdf.Ln(14)

	const (
		dayW   = 32.0
		slotW  = 46.0
		totalW = 61.0
		rowH   = 12.0
	)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(dayW, 8, "Day", "1", 0, "C", true, 0, "")
	for _, slot := range nutrition.MealSlots {
		pdf.CellFormat(slotW, 8, strings.ToUpper(string(slot[:1]))+string(slot[1:]), "1", 0, "C", true, 0, "")
	}
	pdf.CellFormat(totalW, 8, "kcal / P / C / F / Fib", "1", 1, "C", true, 0, "")

	partial := false
	pdf.SetFont("Arial", "", 8)
	for _, day := range week.Days {
		x, y := pdf.GetXY()
		pdf.MultiCell(dayW, rowH/2, day.Weekday+"\n"+day.Date, "1", "C", false)
		pdf.SetXY(x+dayW, y)

		for _, cell := range day.Cells {
			pdf.CellFormat(slotW, rowH, tr(cellLabel(cell)), "1", 0, "L", false, 0, "")
		}

		t := day.Totals
		label := fmt.Sprintf("%.0f / %.0f / %.0f / %.0f / %.0f", t.Calories, t.Protein, t.Carbs, t.Fat, t.Fiber)
		if t.Partial() {
			label += " *"
			partial = true
		}
		pdf.CellFormat(totalW, rowH, label, "1", 1, "C", false, 0, "")
	}

	if partial {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 8)
		pdf.Cell(0, 5, "* incomplete: some items have no value for one or more nutrients")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func cellLabel(cell mealplans.Cell) string {
	if cell.Entry == nil {
		return ""
	}

	name := cell.Entry.MealName
	if cell.Entry.MissingMeal {
		name = "(deleted meal)"
	}
	if len([]rune(name)) > 22 {
		name = string([]rune(name)[:21]) + "."
	}

	label := fmt.Sprintf("%s x%s", name, formatNumber(cell.Entry.Portions))
	switch {
	case cell.Warning != "":
		label += " !"
	case cell.Totals != nil:
		label += fmt.Sprintf(" (%.0f)", cell.Totals.Calories)
	}
	if cell.Conflicts > 0 {
		label += fmt.Sprintf(" +%d", cell.Conflicts)
	}
	return label
}
