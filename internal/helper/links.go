package helper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"hvac-dispatch/internal/models"
)

var ErrNoPhone = errors.New("no phone number on record")

var orderTypeLabel = map[models.OrderType]string{
	models.TypeInstall:  "installation",
	models.TypeMaintain: "maintenance",
	models.TypeRepair:   "repair",
	models.TypeClean:    "cleaning",
}

// MessageLink builds a wa.me click-to-chat URL with a pre-filled message.
func MessageLink(phone, message string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return "", ErrNoPhone
	}
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + text, nil
}

// TrackingURL is the public page for an order.
func TrackingURL(baseURL, publicID string) string {
	return strings.TrimRight(baseURL, "/") + "/track/" + url.PathEscape(publicID)
}

// TechnicianMessage tells the assigned technician about a new order.
func TechnicianMessage(technicianName string, o *models.ServiceOrder, c *models.Customer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, you have a new %s order #%d", technicianName, label(o.Type), o.ID)
	if c != nil {
		fmt.Fprintf(&b, " for %s", c.Name)
		if c.Address != "" {
			fmt.Fprintf(&b, " at %s", c.Address)
		}
	}
	if o.ScheduledDate != nil {
		fmt.Fprintf(&b, ", scheduled for %s", o.ScheduledDate.Format("02/01/2006"))
	}
	b.WriteString(".")
	if o.Equipment != "" {
		fmt.Fprintf(&b, " Equipment: %s.", o.Equipment)
	}
	return b.String()
}

// CustomerMessage tells the customer the technician is on the way, or when
// the visit is scheduled, with the tracking link.
func CustomerMessage(customerName, technicianName string, o *models.ServiceOrder, trackingURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s! ", customerName)
	switch {
	case o.TrackingActive:
		fmt.Fprintf(&b, "%s is on the way for your %s service.", technicianName, label(o.Type))
	case o.ScheduledDate != nil:
		fmt.Fprintf(&b, "Your %s service with %s is scheduled for %s.", label(o.Type), technicianName, o.ScheduledDate.Format("02/01/2006"))
	default:
		fmt.Fprintf(&b, "Your %s service has been assigned to %s.", label(o.Type), technicianName)
	}
	fmt.Fprintf(&b, " Follow it here: %s", trackingURL)
	return b.String()
}

func label(t models.OrderType) string {
	if l, ok := orderTypeLabel[t]; ok {
		return l
	}
	return string(t)
}
