package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/mail.v2"
)

// EmailServiceInterface sends the weekly parent progress summary
type EmailServiceInterface interface {
	SendParentSummary(ctx context.Context, parent *models.Parent, children []models.User, stats map[int]*models.UserStats) error
	IsEnabled() bool
}

// EmailService implements parent summaries over SMTP using gomail
type EmailService struct {
	cfg    *config.Config
	logger *observability.Logger
	dialer *mail.Dialer
}

var _ EmailServiceInterface = (*EmailService)(nil)

// NewEmailService creates a new EmailService instance
func NewEmailService(cfg *config.Config, logger *observability.Logger) *EmailService {
	var dialer *mail.Dialer
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		dialer = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}

	return &EmailService{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
	}
}

// IsEnabled reports whether email sending is configured
func (e *EmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled && e.dialer != nil
}

const parentSummaryTemplate = `
<html>
<body style="font-family: sans-serif; color: #333;">
	<h2>Ugens fremskridt på UTOPAI</h2>
	<p>Hej {{.ParentName}},</p>
	<p>Her er en oversigt over, hvad {{if eq (len .Children) 1}}dit barn{{else}}dine børn{{end}} har lært i denne uge:</p>
	{{range .Children}}
	<div style="border: 1px solid #ddd; border-radius: 8px; padding: 12px; margin: 8px 0;">
		<h3>{{.Username}}</h3>
		<ul>
			<li>Point i alt: <strong>{{.TotalPoints}}</strong></li>
			<li>Gennemførte aktiviteter: <strong>{{.Completed}} af {{.Total}}</strong></li>
			<li>Badges: <strong>{{.BadgeCount}}</strong></li>
			<li>Dage i træk: <strong>{{.StreakDays}}</strong></li>
		</ul>
	</div>
	{{end}}
	<p>Alle aktiviteter handler om at stille gode spørgsmål til en AI - en færdighed, der bliver vigtigere og vigtigere.</p>
	<p>Venlig hilsen<br>UTOPAI</p>
</body>
</html>`

type parentSummaryChild struct {
	Username    string
	TotalPoints int
	Completed   int
	Total       int
	BadgeCount  int
	StreakDays  int
}

type parentSummaryData struct {
	ParentName string
	Children   []parentSummaryChild
}

// SendParentSummary emails a parent an overview of each child's points,
// completed activities, badges and streak. A disabled mailer or a parent
// without an email address is a logged no-op, not an error.
func (e *EmailService) SendParentSummary(ctx context.Context, parent *models.Parent, children []models.User, stats map[int]*models.UserStats) (err error) {
	ctx, span := observability.TraceFunction(ctx, "email", "send_parent_summary",
		attribute.Int("parent.id", parent.ID),
		attribute.Int("children.count", len(children)),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping parent summary", map[string]interface{}{
			"parent_id": parent.ID,
		})
		return nil
	}
	if !parent.Email.Valid || parent.Email.String == "" {
		e.logger.Warn(ctx, "Parent has no email address, skipping summary", map[string]interface{}{
			"parent_id": parent.ID,
		})
		return nil
	}
	if len(children) == 0 {
		return nil
	}

	data := parentSummaryData{ParentName: parent.Username}
	for _, child := range children {
		entry := parentSummaryChild{Username: child.Username, TotalPoints: child.TotalPoints, StreakDays: child.StreakDays}
		if s, ok := stats[child.ID]; ok {
			entry.TotalPoints = s.TotalPoints
			entry.Completed = s.CompletedActivities
			entry.Total = s.TotalActivities
			entry.BadgeCount = s.BadgeCount
			entry.StreakDays = s.StreakDays
		}
		data.Children = append(data.Children, entry)
	}

	tmpl, err := template.New("parent_summary").Parse(parentSummaryTemplate)
	if err != nil {
		return contextutils.WrapError(err, "failed to parse parent summary template")
	}
	var body strings.Builder
	if err = tmpl.Execute(&body, data); err != nil {
		return contextutils.WrapError(err, "failed to render parent summary template")
	}

	m := mail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", e.cfg.Email.SMTP.FromName, e.cfg.Email.SMTP.FromAddress))
	m.SetHeader("To", parent.Email.String)
	m.SetHeader("Subject", "UTOPAI: ugens fremskridt")
	m.SetBody("text/html", body.String())

	if err = e.dialer.DialAndSend(m); err != nil {
		return contextutils.WrapError(err, "failed to send parent summary email")
	}

	e.logger.Info(ctx, "Parent summary sent", map[string]interface{}{
		"parent_id": parent.ID,
		"children":  len(children),
	})
	return nil
}
