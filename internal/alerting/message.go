package alerting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"deedwatch/internal/storage"
)

// RenderMessage formats an alert as plain text for every channel.
func RenderMessage(alert storage.SaleAlert) string {
	var b strings.Builder
	if alert.Priority == storage.PriorityHigh {
		b.WriteString("[HIGH] Property Sale Detected\n\n")
	} else {
		b.WriteString("Property Sale Detected\n\n")
	}

	location := orUnknown(alert.Address)
	if alert.City != "" {
		location += ", " + alert.City
	}
	fmt.Fprintf(&b, "Address: %s\n", location)
	fmt.Fprintf(&b, "APN: %s\n\n", orUnknown(alert.APN))

	fmt.Fprintf(&b, "Sale Price: %s\n", FormatPrice(alert.SalePrice))
	fmt.Fprintf(&b, "Recording Date: %s\n\n", alert.SaleDate.Format("2006-01-02"))

	fmt.Fprintf(&b, "Seller: %s\n", orUnknown(alert.Seller))
	fmt.Fprintf(&b, "Buyer: %s\n", orUnknown(alert.Buyer))

	if alert.WasListed && alert.ListingPrice.Valid {
		fmt.Fprintf(&b, "\nWas Listed: %s", FormatPrice(alert.ListingPrice))
		if alert.PriceVsListing.Valid {
			sign := ""
			if !alert.PriceVsListing.Decimal.IsNegative() {
				sign = "+"
			}
			fmt.Fprintf(&b, " (%s%s%% from list)", sign, alert.PriceVsListing.Decimal.StringFixed(1))
		}
		b.WriteString("\n")
	}
	if alert.PriceVsAssessed.Valid {
		fmt.Fprintf(&b, "Sale/Assessed Ratio: %sx\n", alert.PriceVsAssessed.Decimal.StringFixed(2))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatPrice renders a whole-dollar amount with thousands separators.
func FormatPrice(d decimal.NullDecimal) string {
	if !d.Valid {
		return "Unknown"
	}
	digits := d.Decimal.Abs().StringFixed(0)
	var out strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(r)
	}
	if d.Decimal.IsNegative() {
		return "-$" + out.String()
	}
	return "$" + out.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func decimalString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
