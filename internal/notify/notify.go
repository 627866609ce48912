// Package notify delivers share events to the users they concern, either directly by
// email or through a RabbitMQ queue drained by a mail worker.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/studentkit/internal/models"
)

// LogNotifier only logs events. It is used when no queue or mailer is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event models.ShareEvent) error {
	n.logger.Info("Share event",
		zap.String("type", event.Type),
		zap.String("shareID", event.ShareID),
		zap.String("targetUserID", event.TargetUserID))
	return nil
}

// MailNotifier emails the target of each event synchronously.
type MailNotifier struct {
	mailer Mailer
	from   string
	logger *zap.Logger
}

func NewMailNotifier(mailer Mailer, from string, logger *zap.Logger) *MailNotifier {
	return &MailNotifier{mailer: mailer, from: from, logger: logger}
}

func (n *MailNotifier) Notify(ctx context.Context, event models.ShareEvent) error {
	if event.TargetEmail == "" {
		n.logger.Debug("Share event without target email", zap.String("shareID", event.ShareID))
		return nil
	}
	return n.mailer.Send(ctx, Render(event, n.from))
}

// Render builds the email for a share event.
func Render(event models.ShareEvent, from string) Message {
	who := event.OwnerEmail
	if who == "" {
		who = "Someone"
	}
	profile := event.ProfileName
	if profile == "" {
		profile = "a GPA profile"
	} else {
		profile = fmt.Sprintf("%q", profile)
	}

	var subject, body string
	switch event.Type {
	case models.EventUserShareCreated:
		subject = "A GPA profile was shared with you"
		body = fmt.Sprintf("%s shared %s with you (%s access).", who, profile, permissionLabel(event.Permission))
	case models.EventUserShareRevoked:
		subject = "A shared GPA profile is no longer available"
		body = fmt.Sprintf("%s stopped sharing %s with you.", who, profile)
	case models.EventCollaboratorAdded:
		subject = "You were added as a collaborator"
		body = fmt.Sprintf("%s added you as a collaborator on %s.", who, profile)
	default:
		subject = "Sharing update"
		body = fmt.Sprintf("%s updated sharing for %s.", who, profile)
	}
	return Message{From: from, To: event.TargetEmail, Subject: subject, Body: body}
}

func permissionLabel(p string) string {
	switch strings.ToLower(p) {
	case models.PermissionEdit:
		return "edit"
	default:
		return "read-only"
	}
}
