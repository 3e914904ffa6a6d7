package reservation

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/langchou/rentdesk/internal/pricing"
)

const printTimeLayout = "01/02/2006 03:04 PM"

// FormatMoney 金额显示，如 $99.00
func FormatMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// SummaryRows 费用表格行：Charge | Unit | Rate | Total，最后一行为 Total
func SummaryRows(s *pricing.ChargeSummary) [][4]string {
	rows := make([][4]string, 0, len(s.Lines)+1)
	for _, l := range s.Lines {
		unit := ""
		if l.Quantity != nil {
			unit = strconv.Itoa(*l.Quantity)
		}
		rate := FormatMoney(l.Rate)
		if l.Kind == pricing.LinePercent {
			rate = l.Rate.String() + "%"
		}
		rows = append(rows, [4]string{l.Name, unit, rate, FormatMoney(l.Total)})
	}
	rows = append(rows, [4]string{"Total", "", "", FormatMoney(s.Total)})
	return rows
}

// Print 输出可打印/下载的预约单
func Print(w io.Writer, f Form, q *Quote) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	lines := []string{
		"Reservation\n\n",
		fmt.Sprintf("Reservation ID:\t%s\n", f.ReservationID),
		fmt.Sprintf("Pickup Date:\t%s\n", formatTime(f.Period.Pickup)),
		fmt.Sprintf("Return Date:\t%s\n", formatTime(f.Period.Return)),
		fmt.Sprintf("Duration:\t%s\n", q.DurationText),
	}
	if q.Inverted {
		lines = append(lines, "\t(return date is before pickup date)\n")
	}
	if q.Vehicle != nil {
		lines = append(lines, fmt.Sprintf("Vehicle:\t%s (%s)\n", q.Vehicle.DisplayName(), q.Vehicle.Type))
	}
	lines = append(lines,
		"\n",
		fmt.Sprintf("Customer:\t%s\n", f.Customer.FullName()),
		fmt.Sprintf("Email:\t%s\n", f.Customer.Email),
		fmt.Sprintf("Phone:\t%s\n", f.Customer.Phone),
		"\n",
	)
	for _, l := range lines {
		if _, err := io.WriteString(tw, l); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "Charge\tUnit\tRate\tTotal\t"); err != nil {
		return err
	}
	for _, row := range SummaryRows(q.Summary) {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", row[0], row[1], row[2], row[3]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(printTimeLayout)
}
