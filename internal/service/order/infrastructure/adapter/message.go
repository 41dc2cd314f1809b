package adapter

import (
	"fmt"
	"strings"

	"storefront/internal/service/order/domain/port"
)

// OrderSubject 生成订单通知的邮件标题。
func OrderSubject(n *port.OrderNotification) string {
	id := n.OrderID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	subject := "New order #" + id
	if n.CustomerEmail != "" {
		subject += fmt.Sprintf(" (Customer: %s)", n.CustomerEmail)
	}
	return subject
}

// OrderText 生成纯文本的订单摘要，金额按两位小数显示。
func OrderText(n *port.OrderNotification, currency string) string {
	currency = strings.ToUpper(currency)
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n\n", n.OrderID)
	for _, item := range n.Items {
		fmt.Fprintf(&b, "- %s x%d: %s %s\n", item.Label(), item.Quantity, formatMinor(item.Subtotal()), currency)
	}
	fmt.Fprintf(&b, "\nTotal: %s %s\n", formatMinor(n.Total), currency)
	if n.CustomerEmail != "" {
		fmt.Fprintf(&b, "Customer: %s\n", n.CustomerEmail)
	}
	if a := n.ShippingAddress; a != nil {
		b.WriteString("\nShip to:\n")
		fmt.Fprintf(&b, "%s\n%s\n", a.Name, a.Line1)
		if a.Line2 != "" {
			fmt.Fprintf(&b, "%s\n", a.Line2)
		}
		fmt.Fprintf(&b, "%s, %s %s\n%s\n", a.City, a.State, a.PostalCode, a.Country)
	}
	return b.String()
}

func formatMinor(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
