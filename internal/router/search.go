package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
)

// renderOffer sends the offer under the session cursor with its navigation keyboard.
func (r *Router) renderOffer(ctx context.Context, req *Request, session domain.SearchSession) error {
	return r.respond.Text(ctx, req.ChatID(), offerText(session.Current()), r.offerKeyboard(session))
}

func offerText(o domain.Offer) string {
	b := o.Base()
	var sb strings.Builder

	if b.EstateName != "" {
		sb.WriteString("🏢 " + b.EstateName + "\n")
	}
	if b.Address != "" {
		sb.WriteString("📍 " + b.Address)
		if b.Metro != "" {
			sb.WriteString(" (м. " + b.Metro + ")")
		}
		sb.WriteString("\n")
	} else if b.Metro != "" {
		sb.WriteString("🚇 м. " + b.Metro + "\n")
	}

	var facts []string
	if b.Square > 0 {
		facts = append(facts, "площадь "+strconv.FormatFloat(b.Square, 'f', -1, 64)+" м²")
	}
	if b.Rooms > 0 {
		facts = append(facts, fmt.Sprintf("комнат: %d", b.Rooms))
	}
	if b.Floor != 0 {
		facts = append(facts, fmt.Sprintf("этаж: %d", b.Floor))
	}
	if len(facts) > 0 {
		sb.WriteString(strings.Join(facts, ", ") + "\n")
	}

	switch v := o.(type) {
	case domain.SaleOffer:
		sb.WriteString("💰 " + formatRub(v.Price))
		if v.PricePerMeter > 0 {
			sb.WriteString(" (" + formatRub(v.PricePerMeter) + "/м²)")
		}
		sb.WriteString("\n")
	case domain.RentOffer:
		sb.WriteString("💰 " + formatRub(v.PricePerMonth) + " в месяц\n")
	}

	if b.Description != "" {
		sb.WriteString("\n" + b.Description + "\n")
	}
	if b.Link != "" {
		sb.WriteString("\n" + b.Link)
	}
	return strings.TrimSpace(sb.String())
}

// formatRub renders an amount grouped by thousands: 12500000 -> "12 500 000 ₽".
func formatRub(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var sb strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteRune(d)
	}
	return sign + sb.String() + " ₽"
}

func formatParams(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(data)
}
