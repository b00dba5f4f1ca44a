package main

import (
	"fmt"
	"strings"

	"github.com/LovationAdmin/finance-assistant/dashboard"
)

func printForecast(f *dashboard.ForecastResult) {
	fmt.Println("\n== Forecast ==")
	if f == nil {
		fmt.Println("No forecast available.")
		return
	}
	if f.Error != "" {
		fmt.Println("Forecast unavailable:", f.Error)
	}
	fmt.Println("Total:", dashboard.FormatUSD(f.Total))
	if f.AvgDaily != nil {
		fmt.Println("Daily average:", dashboard.FormatUSD(*f.AvgDaily))
	}
	if f.HistoricalAvgDaily != nil {
		fmt.Println("Historical daily average:", dashboard.FormatUSD(*f.HistoricalAvgDaily))
	}

	hist, fc := dashboard.SplitSeries(f.ChartData)
	if len(hist) > 0 {
		fmt.Printf("%-8s %12s %12s\n", "date", "actual", "forecast")
		for i := range hist {
			fmt.Printf("%-8s %12s %12s\n", hist[i].Date, seriesValue(hist[i]), seriesValue(fc[i]))
		}
	}
	for i, total := range f.WeeklyTotals {
		fmt.Printf("Week %d: %s\n", i+1, dashboard.FormatUSD(total))
	}
}

func seriesValue(p dashboard.SeriesPoint) string {
	if p.Value == nil {
		return "-"
	}
	return dashboard.FormatUSD(*p.Value)
}

func printSubscriptions(subs []dashboard.Subscription) {
	fmt.Println("\n== Subscriptions ==")
	if len(subs) == 0 {
		fmt.Println("None detected.")
		return
	}
	for _, s := range subs {
		sent := ""
		if s.EmailSent {
			sent = " (e-mail sent)"
		}
		fmt.Printf("- %s %s %s%s\n", s.Name, dashboard.FormatUSD(s.Amount), s.Cadence, sent)
	}
}

func printAlerts(alerts []dashboard.Alert) {
	if len(alerts) == 0 {
		return
	}
	fmt.Println("\n== Alerts ==")
	for _, a := range alerts {
		fmt.Println("-", a.Message)
	}
}

func printEmails(emails []dashboard.Email) {
	if len(emails) == 0 {
		return
	}
	fmt.Println("\n== E-mails awaiting approval ==")
	for _, e := range emails {
		status := "pending"
		if e.EmailSent {
			status = "sent"
		}
		fmt.Printf("- %s -> %s [%s] %q\n", e.Merchant, e.To, status, e.Subject)
	}
}

func printTransactions(txs []dashboard.Transaction) {
	fmt.Println("\n== Recent transactions ==")
	if len(txs) == 0 {
		fmt.Println("No transactions.")
		return
	}
	for _, t := range txs {
		amount := dashboard.FormatUSD(t.Amount)
		if t.Credit() {
			amount = "+" + dashboard.FormatUSD(-t.Amount)
		}
		fmt.Printf("%-10s %-30s %12s  %s\n", t.Date, t.Title, amount, strings.Join(t.Categories, ", "))
	}
}

func printTurns(turns []dashboard.Turn) {
	for _, t := range turns {
		who := "you"
		if t.Type == dashboard.TurnBot {
			who = "assistant"
		}
		fmt.Printf("%-9s %s\n", who+":", t.Text)
	}
}

func printCategories(cb dashboard.CategoryBreakdown) {
	fmt.Println("\n== Spending by category ==")
	fmt.Println("Total:", dashboard.FormatUSD(cb.TotalSpending))
	for _, c := range cb.Categories {
		fmt.Printf("%-28s %12s %6.1f%%\n", c.Name, dashboard.FormatUSD(c.Value), c.Percentage)
	}
}
