// Package report builds read-only spending summaries from a ledger
// snapshot. It never touches the remote store.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/lipgloss"

	"github.com/emilsk/kasa/pkg/ledger"
)

// Uncategorized is the bucket for transactions no rule or override covers.
const Uncategorized = "Uncategorized"

// CategoryTotal is the spending aggregate for one category.
type CategoryTotal struct {
	Category string `json:"category"`
	Spent    int64  `json:"spent"` // positive minor units
	Count    int    `json:"count"`
}

// Summary is a per-category spending breakdown over the visible (non-hidden)
// part of a snapshot.
type Summary struct {
	Currency      string          `json:"currency"`
	Categories    []CategoryTotal `json:"categories"`
	TotalSpent    int64           `json:"total_spent"`
	TotalReceived int64           `json:"total_received"`
	Transactions  int             `json:"transactions"`
}

// Build aggregates a snapshot. Hidden transactions are excluded; credits
// only feed the received total.
func Build(snap ledger.Snapshot) Summary {
	s := Summary{Currency: snap.Currency}
	totals := map[string]*CategoryTotal{}

	for _, tx := range snap.Transactions {
		if tx.Hidden {
			continue
		}
		s.Transactions++

		if tx.Amount >= 0 {
			s.TotalReceived += tx.Amount
			continue
		}

		category := tx.Category
		if category == "" {
			category = Uncategorized
		}
		total, ok := totals[category]
		if !ok {
			total = &CategoryTotal{Category: category}
			totals[category] = total
		}
		total.Spent += -tx.Amount
		total.Count++
		s.TotalSpent += -tx.Amount
	}

	for _, total := range totals {
		s.Categories = append(s.Categories, *total)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		if s.Categories[i].Spent != s.Categories[j].Spent {
			return s.Categories[i].Spent > s.Categories[j].Spent
		}
		return s.Categories[i].Category < s.Categories[j].Category
	})
	return s
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	spentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	inStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Render formats the summary for terminal output.
func (s Summary) Render() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Spending by category"))
	b.WriteString("\n")
	for _, c := range s.Categories {
		amount := money.New(c.Spent, s.Currency).Display()
		b.WriteString(fmt.Sprintf("  %-28s %12s %s\n", c.Category, amount,
			dimStyle.Render(fmt.Sprintf("(%d tx)", c.Count))))
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %-28s %12s\n", "Total spent",
		spentStyle.Render(money.New(s.TotalSpent, s.Currency).Display())))
	b.WriteString(fmt.Sprintf("  %-28s %12s\n", "Total received",
		inStyle.Render(money.New(s.TotalReceived, s.Currency).Display())))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d visible transactions", s.Transactions)))
	b.WriteString("\n")
	return b.String()
}
