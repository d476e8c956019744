// Package queue defines message payloads exchanged over the message broker.
package queue

// Email templates rendered by the delivery worker. The API only ever queues
// these two.
const (
    TemplateWelcome       = "welcome"
    TemplatePasswordReset = "password_reset"
)

// EmailEvent is published whenever the API needs an email delivered. It
// carries everything the delivery worker needs to render and send the message
// without querying the primary database.
type EmailEvent struct {
    Template string `json:"template"`
    To       string `json:"to"`
    Name     string `json:"name"`
    URL      string `json:"url"`
    QueuedAt string `json:"queued_at"`
}
