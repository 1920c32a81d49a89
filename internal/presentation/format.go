package presentation

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// usd formats a dollar amount with grouping and the given decimals.
func usd(v float64, decimals int) string {
	return printer.Sprintf("$"+verb(decimals), v)
}

// grouped formats v with thousands separators.
func grouped(v float64, decimals int) string {
	return printer.Sprintf(verb(decimals), v)
}

// percent formats a signed percentage, "+12.40%".
func percent(v float64) string {
	if v >= 0 {
		return printer.Sprintf("+%.2f%%", v)
	}
	return printer.Sprintf("%.2f%%", v)
}

// shortAddress abbreviates long ids, "So1111...abcd".
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func verb(decimals int) string {
	return "%." + strconv.Itoa(decimals) + "f"
}
