// Package mail turns booking notification events into outbound messages and
// hands them to a transport.
package mail

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	netmail "net/mail"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/joy095/hallbooking/models/booking_models"
	"github.com/joy095/hallbooking/models/facility_models"
	"github.com/joy095/hallbooking/models/notification_models"
	"github.com/joy095/hallbooking/models/shared_models"
	"github.com/joy095/hallbooking/models/tenant_models"
)

const (
	RoleCaretaker = "caretaker"
	RoleRenter    = "renter"
)

var ErrUnknownEventType = errors.New("unknown notification event type")

//go:embed templates/*.tmpl
var templateFS embed.FS

// Message is one rendered email.
type Message struct {
	Role           string   `json:"role"`
	From           string   `json:"from"`
	ReplyTo        string   `json:"reply_to,omitempty"`
	To             []string `json:"to"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	IdempotencyKey string   `json:"idempotency_key"`
}

// MessageID is the RFC 5322 Message-ID derived from the idempotency key.
func (m Message) MessageID() string {
	return "<" + m.IdempotencyKey + "@hallbooking>"
}

// Snapshot is everything needed to describe a booking to its recipients.
type Snapshot struct {
	Booking    booking_models.Booking
	Facility   facility_models.Facility
	Caretakers []facility_models.Caretaker
	Tenant     tenant_models.Config
}

// IdempotencyKey is stable across redeliveries of the same event to the same
// recipient role.
func IdempotencyKey(eventID, bookingID uuid.UUID, eventType, role string) string {
	name := strings.Join([]string{eventID.String(), bookingID.String(), eventType, role}, "|")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// UsableAddress reports whether addr can be put in a To header.
func UsableAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	parsed, err := netmail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

type Planner struct {
	tmpl        *template.Template
	defaultFrom string
	location    *time.Location
}

// NewPlanner parses the embedded templates. defaultFrom is used when a
// tenant has no sender address of its own.
func NewPlanner(defaultFrom string, loc *time.Location) (*Planner, error) {
	if loc == nil {
		loc = time.UTC
	}
	funcs := template.FuncMap{
		"fmtTime": func(t time.Time) string { return t.In(loc).Format("Mon 02 Jan 2006 15:04") },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
	tmpl, err := template.New("mail").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Planner{tmpl: tmpl, defaultFrom: defaultFrom, location: loc}, nil
}

type view struct {
	Snapshot
	RecipientName string
	Status        string
	Accepted      bool
	Comment       string
	CancelURL     string
}

// Plan derives the caretaker-facing and renter-facing messages for ev. A side
// without a usable address gets no message, so the result may be empty.
func (p *Planner) Plan(ev notification_models.Event, snap Snapshot) ([]Message, error) {
	if !shared_models.ValidEventType(ev.EventType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, ev.EventType)
	}

	v := view{
		Snapshot: snap,
		Status:   ev.Metadata.Status,
		Accepted: ev.Metadata.Status == shared_models.BookingStatusActive,
		Comment:  strings.TrimSpace(ev.Metadata.Comment),
	}
	if v.Status == "" {
		v.Status = snap.Booking.Status
	}
	if ev.EventType != shared_models.EventBookingCancelledByRenter {
		v.CancelURL = cancelURL(snap.Tenant.PublicBaseURL, snap.Booking.CancelToken)
	}

	var msgs []Message

	var caretakers []string
	var names []string
	for _, c := range snap.Caretakers {
		if UsableAddress(c.Email) {
			caretakers = append(caretakers, c.Email)
			names = append(names, c.Name)
		}
	}
	if len(caretakers) > 0 {
		cv := v
		cv.RecipientName = "caretaker"
		if len(names) == 1 && names[0] != "" {
			cv.RecipientName = names[0]
		}
		cv.CancelURL = ""
		m, err := p.render(ev, RoleCaretaker, caretakers, cv)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}

	if UsableAddress(snap.Booking.SubmitterEmail) {
		m, err := p.render(ev, RoleRenter, []string{snap.Booking.SubmitterEmail}, v)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (p *Planner) render(ev notification_models.Event, role string, to []string, v view) (Message, error) {
	var body bytes.Buffer
	name := role + "_" + ev.EventType
	if err := p.tmpl.ExecuteTemplate(&body, name, v); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}

	from := v.Tenant.SenderEmail
	if from == "" {
		from = p.defaultFrom
	}
	return Message{
		Role:           role,
		From:           from,
		ReplyTo:        v.Tenant.ReplyTo,
		To:             to,
		Subject:        subject(ev.EventType, role, v),
		Body:           strings.TrimSpace(body.String()) + "\n",
		IdempotencyKey: IdempotencyKey(ev.ID, v.Booking.ID, ev.EventType, role),
	}, nil
}

func subject(eventType, role string, v view) string {
	facility := v.Facility.Name
	switch eventType {
	case shared_models.EventBookingCreated:
		if role == RoleCaretaker {
			return "New booking request for " + facility
		}
		return "Your booking request for " + facility + " is pending"
	case shared_models.EventBookingStatusDecided:
		if role == RoleCaretaker {
			return fmt.Sprintf("Booking for %s is now %s", facility, v.Status)
		}
		if v.Accepted {
			return "Your booking for " + facility + " was accepted"
		}
		return "Your booking for " + facility + " was not accepted"
	default:
		return "Booking for " + facility + " was cancelled"
	}
}

func cancelURL(base, token string) string {
	if base == "" || token == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/bookings/cancel?token=" + url.QueryEscape(token)
}
