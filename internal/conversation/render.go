package conversation

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/Proton-105/ledger-bot/internal/i18n"
	"github.com/Proton-105/ledger-bot/internal/state"
)

// Renderer produces the user-facing texts in one language.
type Renderer struct {
	tr      i18n.Translator
	printer *message.Printer
}

// NewRenderer binds a translator to the number formatting rules of its language.
func NewRenderer(tr i18n.Translator) *Renderer {
	tag, err := language.Parse(tr.Lang())
	if err != nil {
		tag = language.Indonesian
	}

	return &Renderer{
		tr:      tr,
		printer: message.NewPrinter(tag),
	}
}

// T returns the catalog text for key.
func (r *Renderer) T(key string) string {
	return r.tr.T(key)
}

// Amount formats an integer amount with the language's digit grouping, e.g. 15000 -> "15.000".
func (r *Renderer) Amount(amount int64) string {
	return r.printer.Sprint(number.Decimal(amount))
}

// Total formats a backend total, keeping up to three fraction digits.
func (r *Renderer) Total(total float64) string {
	return r.printer.Sprint(number.Decimal(total, number.MaxFractionDigits(3)))
}

// MonthYear renders t as a localized "<month name> <year>".
func (r *Renderer) MonthYear(t time.Time) string {
	month := r.tr.T("month." + strconv.Itoa(int(t.Month())))
	return month + " " + strconv.Itoa(t.Year())
}

// StatusLabel returns the button label for status.
func (r *Renderer) StatusLabel(status state.Status) string {
	return r.tr.T("status.label." + strings.ToLower(string(status)))
}

// StatusChoices builds the single-row status keyboard.
func (r *Renderer) StatusChoices() [][]Choice {
	row := make([]Choice, 0, len(state.Statuses))
	for _, status := range state.Statuses {
		row = append(row, Choice{Label: r.StatusLabel(status), Data: StatusCallbackData(status)})
	}
	return [][]Choice{row}
}

// Summary renders the confirmation of a stored entry.
func (r *Renderer) Summary(st *state.ConversationState) string {
	var amount int64
	if st.Amount != nil {
		amount = *st.Amount
	}

	return r.tr.Format("submit.success", map[string]string{
		"Date":     st.Date,
		"Activity": st.Activity,
		"Status":   string(st.Status),
		"Amount":   r.Amount(amount),
	})
}

// MonthlyTotal renders the reply to the monthly total command.
func (r *Renderer) MonthlyTotal(period time.Time, total float64) string {
	return r.tr.Format("total.summary", map[string]string{
		"Period": r.MonthYear(period),
		"Total":  r.Total(total),
	})
}

// Keyboard is the reply keyboard offered with the greeting.
func (r *Renderer) Keyboard() [][]string {
	return [][]string{
		{"/" + string(CommandInput), "/" + string(CommandTotal)},
		{"/" + string(CommandCancel), "/" + string(CommandHelp)},
	}
}
