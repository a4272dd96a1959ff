package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type messageTemplate struct {
	title *template.Template
	body  *template.Template
}

func mustTemplate(kind Kind, title, body string) messageTemplate {
	return messageTemplate{
		title: template.Must(template.New(string(kind) + ".title").Option("missingkey=zero").Parse(title)),
		body:  template.Must(template.New(string(kind) + ".body").Option("missingkey=zero").Parse(body)),
	}
}

var templates = map[Kind]messageTemplate{
	KindJobPosted: mustTemplate(KindJobPosted,
		"Job posted",
		`Your job "{{.jobTitle}}" is live and open for bids.`),
	KindBidPlaced: mustTemplate(KindBidPlaced,
		"New bid received",
		`{{.studentName}} bid {{.bidAmount}} on "{{.jobTitle}}".`),
	KindBidAccepted: mustTemplate(KindBidAccepted,
		"Your bid was accepted",
		`Your bid of {{.bidAmount}} on "{{.jobTitle}}" was accepted. You can start working now.`),
	KindJobAccepted: mustTemplate(KindJobAccepted,
		"Job accepted",
		`{{.studentName}} accepted your job "{{.jobTitle}}".`),
	KindJobCompleted: mustTemplate(KindJobCompleted,
		"Job completed",
		`{{.studentName}} marked "{{.jobTitle}}" as completed. Please review and rate the work.`),
	KindJobRated: mustTemplate(KindJobRated,
		"You were rated",
		`You received {{.rating}} stars for "{{.jobTitle}}".`),
	KindPaymentReleased: mustTemplate(KindPaymentReleased,
		"Payment released",
		`{{.amount}} for "{{.jobTitle}}" has been released to you.`),
}

// Render builds the human-readable message for n.
func Render(n Notification) (Message, error) {
	t, ok := templates[n.Kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for kind %q", n.Kind)
	}
	var title, body bytes.Buffer
	if err := t.title.Execute(&title, n.Data); err != nil {
		return Message{}, fmt.Errorf("render title: %w", err)
	}
	if err := t.body.Execute(&body, n.Data); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}
	return Message{Title: title.String(), Body: body.String()}, nil
}
