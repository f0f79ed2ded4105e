package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"daily-tracker/internal/model"
	"daily-tracker/internal/report"
)

const barWidth = 10

// ReportService renders derived views as Telegram HTML messages.
type ReportService struct {
	loc *time.Location
}

func NewReportService(loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{loc: loc}
}

// Clock is the header line with the current local time and date.
func (s *ReportService) Clock(view report.View, now time.Time) string {
	now = now.In(s.loc)
	icon := view.Settings.Theme.Presentation().Icon
	return fmt.Sprintf("%s <b>%s</b>\n🗓 %s", icon, now.Format("3:04:05 PM"), now.Format("Monday, January 2, 2006"))
}

// ActivityReport is the full profile, task and budget summary.
func (s *ReportService) ActivityReport(view report.View, now time.Time) string {
	p := view.Settings.Theme.Presentation()
	var builder strings.Builder

	builder.WriteString("📋 <b>Activity Report</b>\n")
	builder.WriteString(s.Clock(view, now))
	builder.WriteString("\n" + p.Divider + "\n\n")

	builder.WriteString("👤 <b>User Profile</b>\n")
	builder.WriteString(fmt.Sprintf("Name: %s\n", html.EscapeString(view.Settings.DisplayName)))
	email := view.Settings.Email
	if strings.TrimSpace(email) == "" {
		email = "Not set"
	}
	builder.WriteString(fmt.Sprintf("Reminder Email: %s\n\n", html.EscapeString(email)))

	ts := view.TaskSummary
	builder.WriteString("✅ <b>Task Summary</b>\n")
	builder.WriteString(fmt.Sprintf("Total Tasks: %d\nCompleted: %d\nPending: %d\nCompletion Rate: %d%%\n\n",
		ts.Total, ts.Completed, ts.Pending, ts.CompletionRate))

	builder.WriteString("💰 <b>Budget Summary</b>\n")
	builder.WriteString(formatTotals(view.Totals, p))
	builder.WriteString("\n")

	builder.WriteString("🏷 <b>Spending by Vendor</b>\n")
	if len(view.Spending) == 0 {
		builder.WriteString("No expenses to categorize.\n")
	} else {
		for _, vs := range view.Spending {
			builder.WriteString(formatVendor(vs))
		}
	}

	return strings.TrimSpace(builder.String())
}

// TaskList renders the ordered task list.
func (s *ReportService) TaskList(view report.View, now time.Time) string {
	p := view.Settings.Theme.Presentation()
	var builder strings.Builder

	builder.WriteString(s.Clock(view, now))
	builder.WriteString(fmt.Sprintf("\n\n📝 <b>Tasks</b> (%d/%d done)\n", view.TaskSummary.Completed, view.TaskSummary.Total))
	if len(view.Tasks) == 0 {
		builder.WriteString("Add a new task or view your progress in the report.\n")
	}
	for _, task := range view.Tasks {
		builder.WriteString(formatTask(task, p, s.loc))
	}
	return strings.TrimSpace(builder.String())
}

// Ledger renders totals and the newest transactions.
func (s *ReportService) Ledger(view report.View, now time.Time, limit int) string {
	p := view.Settings.Theme.Presentation()
	var builder strings.Builder

	builder.WriteString(s.Clock(view, now))
	builder.WriteString("\n\n💰 <b>Budget</b>\n")
	builder.WriteString(formatTotals(view.Totals, p))
	builder.WriteString(p.Divider + "\n")

	txs := view.Transactions
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	if len(txs) == 0 {
		builder.WriteString("Add a new transaction or view your summary in the report.\n")
	}
	for _, tx := range txs {
		builder.WriteString(formatTransaction(tx, p, s.loc))
	}
	return strings.TrimSpace(builder.String())
}

func formatTask(task model.Task, p model.PresentationTheme, loc *time.Location) string {
	mark := "⬜️"
	text := html.EscapeString(task.Text)
	if task.Completed {
		mark = "✅"
		text = "<s>" + text + "</s>"
	}
	created := time.UnixMilli(task.CreatedAt).In(loc).Format("Jan 2 15:04")
	return fmt.Sprintf("%s %s %s <i>(%s)</i>\n", p.Bullet, mark, text, created)
}

func formatTransaction(tx model.Transaction, p model.PresentationTheme, loc *time.Location) string {
	icon, sign := p.Expense, "-"
	if tx.Type == model.TransactionIncome {
		icon, sign = p.Income, "+"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s%s %s", icon, sign, money(tx.Amount), html.EscapeString(tx.Description)))
	if v := strings.TrimSpace(tx.Vendor); v != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(v)))
	}
	sb.WriteString(fmt.Sprintf("\n   🕒 %s\n", time.UnixMilli(tx.CreatedAt).In(loc).Format("2006-01-02 15:04")))
	return sb.String()
}

func formatTotals(t report.Totals, p model.PresentationTheme) string {
	balanceIcon := "🔵"
	if t.Balance.IsNegative() {
		balanceIcon = "🟡"
	}
	return fmt.Sprintf("%s Total Income: <b>%s</b>\n%s Total Expenses: <b>%s</b>\n%s Net Balance: <b>%s</b>\n",
		p.Income, money(t.Income), p.Expense, money(t.Expenses), balanceIcon, money(t.Balance))
}

func formatVendor(vs report.VendorSpending) string {
	return fmt.Sprintf("%s: <b>%s</b>\n<code>%s</code> %.0f%%\n",
		html.EscapeString(vs.Vendor), money(vs.Amount), bar(vs.Percentage), vs.Percentage)
}

func money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func bar(percentage float64) string {
	filled := int(percentage/100*barWidth + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
