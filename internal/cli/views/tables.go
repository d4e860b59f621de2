package views

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/thrivebase/thrivebase/internal/cli/client"
)

// PrintInstitutions writes connected institutions as a table
func PrintInstitutions(out io.Writer, institutions []client.Institution) error {
	if len(institutions) == 0 {
		fmt.Fprintln(out, "No connected institutions.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ITEM ID\tINSTITUTION\tSTATUS")
	for _, inst := range institutions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", inst.ItemID, inst.InstitutionName, inst.Status)
	}
	return w.Flush()
}

// PrintAccounts writes linked accounts as a table
func PrintAccounts(out io.Writer, accounts []client.Account) error {
	if len(accounts) == 0 {
		fmt.Fprintln(out, "No linked accounts.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tCURRENT\tAVAILABLE\tUPDATED")
	for _, a := range accounts {
		available := "-"
		if a.BalanceAvailable != nil {
			available = money(*a.BalanceAvailable, a.ISOCurrencyCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.Name,
			accountKind(a),
			money(a.BalanceCurrent, a.ISOCurrencyCode),
			available,
			a.LastUpdated,
		)
	}
	return w.Flush()
}

// PrintSummary writes the accounts followed by their totals
func PrintSummary(out io.Writer, summary client.AccountSummary) error {
	if err := PrintAccounts(out, summary.Accounts); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Accounts:          %d\n", summary.Summary.TotalAccounts)
	fmt.Fprintf(out, "Total current:     %s\n", summary.Summary.TotalCurrentBalance.StringFixed(2))
	fmt.Fprintf(out, "Total available:   %s\n", summary.Summary.TotalAvailableBalance.StringFixed(2))
	return nil
}

// PrintTransactions writes transactions as a table
func PrintTransactions(out io.Writer, transactions []client.Transaction) error {
	if len(transactions) == 0 {
		fmt.Fprintln(out, "No transactions found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "DATE\tDESCRIPTION\tCATEGORY\tAMOUNT\tACCOUNT")
	for _, t := range transactions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Date, t.Description, t.Category, t.Amount.StringFixed(2), t.AccountID)
	}
	return w.Flush()
}

func money(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	return amount.StringFixed(2) + " " + currency
}

func accountKind(a client.Account) string {
	if a.Subtype != "" {
		return a.Type + "/" + a.Subtype
	}
	return a.Type
}
