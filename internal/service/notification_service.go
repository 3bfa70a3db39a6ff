package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/pkg/config"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
	"github.com/artsdesk/artsdesk-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type recipientFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Mailer sends one outbound message.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer delivers mail through a configured SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds a mailer from notification settings.
func NewSMTPMailer(cfg config.NotificationsConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.FromAddress,
	}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return m.dialer.DialAndSend(msg)
}

type emailPayload struct {
	To      string
	Subject string
	Body    string
}

// NotificationService stores in-app notifications and queues outcome emails.
// Everything here is best effort: a lost notification never rolls back or
// blocks the moderation decision that produced it.
type NotificationService struct {
	repo         notificationStore
	users        recipientFinder
	mailer       Mailer
	queue        *jobs.Queue
	emailEnabled bool
	logger       *zap.Logger
}

// NewNotificationService constructs the service and its delivery queue.
func NewNotificationService(repo notificationStore, users recipientFinder, mailer Mailer, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		repo:         repo,
		users:        users,
		mailer:       mailer,
		emailEnabled: cfg.EmailEnabled && mailer != nil,
		logger:       logger,
	}
	svc.queue = jobs.NewQueue("notifications", svc.handleEmail, jobs.QueueConfig{
		Workers: cfg.WorkerConcurrency,
		Logger:  logger,
	})
	return svc
}

// Start launches the email delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyDecision records an in-app notification and queues the matching email.
func (s *NotificationService) NotifyDecision(ctx context.Context, userID string, template models.NotificationTemplate, title string, reason *string) {
	subject, body := renderTemplate(template, title, reason)
	notification := &models.Notification{
		UserID:   userID,
		Template: template,
		Subject:  subject,
		Body:     body,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to store notification", zap.Error(err), zap.String("user_id", userID))
	}
	if !s.emailEnabled {
		return
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to resolve notification recipient", zap.Error(err), zap.String("user_id", userID))
		return
	}
	err = s.queue.Enqueue(jobs.Job{
		ID:      notification.ID,
		Type:    "decision-email",
		Payload: emailPayload{To: user.Email, Subject: subject, Body: body},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification email", zap.Error(err), zap.String("user_id", userID))
	}
}

// ListForUser returns the actor's own notifications.
func (s *NotificationService) ListForUser(ctx context.Context, actor *models.JWTClaims, limit, offset int) ([]models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	notifications, err := s.repo.ListByUser(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

func (s *NotificationService) handleEmail(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(emailPayload)
	if !ok {
		s.logger.Warn("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.mailer.Send(payload.To, payload.Subject, payload.Body); err != nil {
		// Best effort: log and drop instead of retrying.
		s.logger.Warn("email delivery failed", zap.Error(err), zap.String("to", payload.To))
	}
	return nil
}

func renderTemplate(template models.NotificationTemplate, title string, reason *string) (subject, body string) {
	switch template {
	case models.TemplateApproved:
		return "Your submission has been published",
			fmt.Sprintf("Good news! %q is now live in the directory.", title)
	case models.TemplateChangesRequested:
		return "Your submission needs changes",
			fmt.Sprintf("%q was returned by our moderators: %s. Update it and submit again.", title, derefReason(reason))
	case models.TemplateRejected:
		return "Your submission was not accepted",
			fmt.Sprintf("%q was reviewed and will not be published.", title)
	case models.TemplateUpgradeApproved:
		return "Your account has been upgraded",
			"Your upgrade request has been approved. Your new profile tools are available the next time you sign in."
	case models.TemplateUpgradeDenied:
		return "Your upgrade request was declined",
			fmt.Sprintf("Your upgrade request was declined: %s", derefReason(reason))
	default:
		return "Update on your submission", fmt.Sprintf("There is an update on %q.", title)
	}
}

func derefReason(reason *string) string {
	if reason == nil {
		return "no reason given"
	}
	return *reason
}
