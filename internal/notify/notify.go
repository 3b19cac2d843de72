package notify

import (
	"log"
	"time"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
)

// Notifier surfaces an outcome to whoever is watching. Calls never fail and
// never block the caller on delivery.
//
//go:generate mockgen -destination=mocks/mock_notify.go -source=notify.go Notifier
type Notifier interface {
	Notify(kind Kind, title string, message string)
}

type LogNotifier struct{}

func (LogNotifier) Notify(kind Kind, title string, message string) {
	log.Printf("[notify] %s: %s: %s", kind, title, message)
}

type Publisher interface {
	Publish(table string, lokasi string, payload any)
}

type Notification struct {
	Kind    Kind      `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const Table = "notifications"

// FeedNotifier pushes notifications to every connected dashboard.
type FeedNotifier struct {
	publisher Publisher
}

func NewFeedNotifier(publisher Publisher) *FeedNotifier {
	return &FeedNotifier{publisher: publisher}
}

func (n *FeedNotifier) Notify(kind Kind, title string, message string) {
	if n == nil || n.publisher == nil {
		return
	}
	n.publisher.Publish(Table, "", Notification{
		Kind:    kind,
		Title:   title,
		Message: message,
		At:      time.Now().UTC(),
	})
}

type Multi []Notifier

func (m Multi) Notify(kind Kind, title string, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(kind, title, message)
		}
	}
}
