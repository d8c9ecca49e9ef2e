package sms

import (
	"time"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
)

// Status tracks where an inbound message is in the reply workflow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusResponded Status = "responded"
	StatusFailed    Status = "failed"
)

// Message is one inbound SMS as shown in the dashboard.
type Message struct {
	SID        string        `json:"sid"`
	From       string        `json:"from"`
	Body       string        `json:"body"`
	ReceivedAt time.Time     `json:"dateCreated"`
	Language   language.Code `json:"language"`
	Status     Status        `json:"status"`
	AIResponse string        `json:"aiResponse,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Responded reports whether a reply has been delivered.
func (m Message) Responded() bool {
	return m.Status == StatusResponded
}

// Counts summarises an inbox.
type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Responded int `json:"responded"`
	Failed    int `json:"failed"`
}

// Tally counts messages by status.
func Tally(messages []Message) Counts {
	c := Counts{Total: len(messages)}
	for _, m := range messages {
		switch m.Status {
		case StatusResponded:
			c.Responded++
		case StatusFailed:
			c.Failed++
		default:
			c.Pending++
		}
	}
	return c
}

// ResponseRecord is the persisted outcome of replying to one SID.
type ResponseRecord struct {
	SID       string        `json:"sid"`
	To        string        `json:"to"`
	Language  language.Code `json:"language"`
	Status    Status        `json:"status"`
	Response  string        `json:"aiResponse,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}
