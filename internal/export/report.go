package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"pisoheroes/internal/analytics"
	"pisoheroes/internal/core"
)

// ReportFilename is the download name for the visual report of [from, to].
func ReportFilename(from, to core.Date) string {
	return fmt.Sprintf("pisoheroes_user_report_%s_to_%s.csv", from, to)
}

// WriteReport writes the analytics report as consecutive CSV sections,
// each introduced by a title row and separated by an empty row.
func WriteReport(w io.Writer, rep analytics.Report) error {
	cw := csv.NewWriter(w)
	section := func(title string, header []string, rows [][]string, last bool) {
		_ = cw.Write([]string{title})
		_ = cw.Write(header)
		_ = cw.WriteAll(rows)
		if !last {
			_ = cw.Write([]string{})
		}
	}

	raw := make([][]string, 0, len(rep.Expenses))
	for _, e := range rep.Expenses {
		raw = append(raw, []string{e.Date.String(), e.Category, e.Amount.Decimal(), flattenNotes(e.Notes)})
	}
	section("RAW TRANSACTIONS", Header, raw, false)

	var daily [][]string
	for _, p := range rep.Daily {
		if p.Total.Cents == 0 {
			continue
		}
		daily = append(daily, []string{p.Date, p.Total.Decimal()})
	}
	section("DAILY TOTALS", []string{"Date", "Total Amount"}, daily, false)

	var cats [][]string
	for _, p := range rep.Categories {
		cats = append(cats, []string{p.Category, p.Total.Decimal(), strconv.FormatFloat(p.Percentage, 'f', 1, 64)})
	}
	section("CATEGORY BREAKDOWN", []string{"Category", "Total Amount", "Percentage"}, cats, false)

	var weeks [][]string
	for _, p := range rep.Weekly {
		weeks = append(weeks, []string{p.WeekLabel, p.Total.Decimal()})
	}
	section("WEEKLY TOTALS", []string{"Week Range", "Total Amount"}, weeks, false)

	var months [][]string
	for _, p := range rep.Monthly {
		months = append(months, []string{p.Month, p.Total.Decimal()})
	}
	section("MONTHLY TOTALS", []string{"Month", "Total Amount"}, months, false)

	var hours [][]string
	for _, p := range rep.Hourly {
		if p.Count == 0 {
			continue
		}
		hours = append(hours, []string{p.TimeLabel, strconv.Itoa(p.Count), p.Total.Decimal()})
	}
	section("HOURLY PATTERNS", []string{"Hour", "Transactions", "Total Amount"}, hours, true)

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write report csv: %w", err)
	}
	return nil
}

func flattenNotes(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

// AuditHeader is the column row of an audit log export.
var AuditHeader = []string{"Timestamp", "User ID", "Action Type", "Resource Type", "Resource ID", "IP Address", "User Agent", "Metadata"}

// AuditFilename is the download name for an audit export taken at now.
func AuditFilename(now time.Time) string {
	return "audit_logs_" + now.Format("20060102_150405") + ".csv"
}

// WriteAuditCSV writes one line per entry in the given order. Timestamps
// are rendered in loc.
func WriteAuditCSV(w io.Writer, entries []core.AuditEntry, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(AuditHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		user := ""
		if e.UserID != 0 {
			user = strconv.FormatInt(e.UserID, 10)
		}
		if err := cw.Write([]string{
			e.Timestamp.In(loc).Format("2006-01-02 15:04:05"),
			user,
			string(e.Action),
			string(e.Resource),
			e.ResourceID,
			e.IPAddress,
			e.UserAgent,
			e.MetadataJSON(),
		}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write audit csv: %w", err)
	}
	return nil
}
