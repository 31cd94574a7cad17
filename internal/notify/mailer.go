package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/membership"
)

var mailTemplates = map[string]string{
	"invitation": `<p>Hello {{.Name}},</p>
<p>{{.Inviter}} invited you to join the group <strong>{{.Group}}</strong> on {{.Title}}.</p>
<p><a href="{{.Link}}">Accept the invitation</a></p>
<p>The link expires on {{.Expires}}. If you did not expect this invitation you can ignore this email.</p>`,

	"invitation_accepted": `<p>Hello {{.Name}},</p>
<p>{{.Invitee}} accepted your invitation to <strong>{{.Group}}</strong>.</p>`,

	"join_requested": `<p>Hello {{.Name}},</p>
<p>{{.Requester}} asked to join <strong>{{.Group}}</strong>.</p>
<p><a href="{{.Link}}">Review the request</a></p>`,

	"request_decided": `<p>Hello {{.Name}},</p>
<p>Your request to join <strong>{{.Group}}</strong> was {{.Outcome}}.</p>`,

	"member_removed": `<p>Hello {{.Name}},</p>
<p>You were removed from the group <strong>{{.Group}}</strong>.</p>`,

	"role_changed": `<p>Hello {{.Name}},</p>
<p>Your role in <strong>{{.Group}}</strong> is now {{.Role}}.</p>`,
}

// Mailer delivers membership notifications over SMTP. Sends run on their own
// goroutine so a slow mail server never stalls a request.
type Mailer struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string
	title   string
}

var _ membership.Notifier = (*Mailer)(nil)

// NewMailer creates a Mailer from the mail and webserver configuration.
func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		dialer:  gomail.NewDialer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password),
		from:    cfg.Mail.From,
		baseURL: strings.TrimRight(cfg.Webserver.URL, "/"),
		title:   cfg.Title,
	}
}

// render executes the named mail template with the given data.
func render(name string, data any) (string, error) {
	content, ok := mailTemplates[name]
	if !ok {
		return "", fmt.Errorf("mail template %q not found", name)
	}

	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", err
	}

	return body.String(), nil
}

func (m *Mailer) send(to, subject, templateName string, data any) {
	body, err := render(templateName, data)
	if err != nil {
		log.Error().Err(err).Str("template", templateName).Msg("failed to render mail")

		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	go func() {
		if err := m.dialer.DialAndSend(msg); err != nil {
			log.Error().Err(err).Str("to", to).Str("subject", subject).Msg("failed to send mail")
		}
	}()
}

// InvitationCreated mails the invitee their redemption link.
func (m *Mailer) InvitationCreated(group *models.Group, invitee *models.User, token string, expiresAt time.Time) {
	m.send(invitee.Email, fmt.Sprintf("You are invited to %s", group.Name), "invitation", map[string]string{
		"Name":    invitee.Name,
		"Inviter": group.User.Name,
		"Group":   group.Name,
		"Title":   m.title,
		"Link":    fmt.Sprintf("%s/group/invitation/%s", m.baseURL, token),
		"Expires": expiresAt.Format(time.RFC1123),
	})
}

// InvitationAccepted mails the inviter that the invitee joined.
func (m *Mailer) InvitationAccepted(group *models.Group, inviter *models.User, invitee *models.User) {
	m.send(inviter.Email, fmt.Sprintf("%s joined %s", invitee.Name, group.Name), "invitation_accepted", map[string]string{
		"Name":    inviter.Name,
		"Invitee": invitee.Name,
		"Group":   group.Name,
	})
}

// JoinRequested mails every group admin about the pending request.
func (m *Mailer) JoinRequested(group *models.Group, requester *models.User, admins []models.User) {
	for _, admin := range admins {
		m.send(admin.Email, fmt.Sprintf("Join request for %s", group.Name), "join_requested", map[string]string{
			"Name":      admin.Name,
			"Requester": requester.Name,
			"Group":     group.Name,
			"Link":      fmt.Sprintf("%s/group/%s", m.baseURL, group.Slug),
		})
	}
}

// RequestDecided mails the requester the outcome of their join request.
func (m *Mailer) RequestDecided(group *models.Group, user *models.User, approved bool) {
	outcome := "approved"
	if !approved {
		outcome = "rejected"
	}

	m.send(user.Email, fmt.Sprintf("Your request to join %s", group.Name), "request_decided", map[string]string{
		"Name":    user.Name,
		"Group":   group.Name,
		"Outcome": outcome,
	})
}

// MemberRemoved mails a user removed from a group.
func (m *Mailer) MemberRemoved(group *models.Group, user *models.User) {
	m.send(user.Email, fmt.Sprintf("You were removed from %s", group.Name), "member_removed", map[string]string{
		"Name":  user.Name,
		"Group": group.Name,
	})
}

// RoleChanged mails a member whose role was changed.
func (m *Mailer) RoleChanged(group *models.Group, user *models.User, role models.MembershipRole) {
	m.send(user.Email, fmt.Sprintf("Your role in %s changed", group.Name), "role_changed", map[string]string{
		"Name":  user.Name,
		"Group": group.Name,
		"Role":  string(role),
	})
}
