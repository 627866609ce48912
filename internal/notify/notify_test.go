package notify

import (
	"context"
	"errors"
	"net/smtp"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/models"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func fakeSMTP(cfg SMTPConfig, sent *[]sentMail, fail error) *SMTPMailer {
	m := NewSMTPMailer(cfg)
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		if fail != nil {
			return fail
		}
		*sent = append(*sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return m
}

func TestRender(t *testing.T) {
	msg := Render(models.ShareEvent{
		Type:        models.EventUserShareCreated,
		OwnerEmail:  "alice@example.com",
		TargetEmail: "bob@example.com",
		ProfileName: "Fall",
		Permission:  models.PermissionEdit,
	}, "noreply@example.com")
	assert.Equal(t, "bob@example.com", msg.To)
	assert.Equal(t, "noreply@example.com", msg.From)
	assert.Equal(t, "A GPA profile was shared with you", msg.Subject)
	assert.Equal(t, `alice@example.com shared "Fall" with you (edit access).`, msg.Body)

	msg = Render(models.ShareEvent{Type: models.EventUserShareRevoked, TargetEmail: "bob@example.com"}, "x@example.com")
	assert.Equal(t, "Someone stopped sharing a GPA profile with you.", msg.Body)
}

func TestSMTPMailer(t *testing.T) {
	var sent []sentMail
	m := fakeSMTP(SMTPConfig{Host: "smtp.example.com", Port: 2525, Username: "u", Password: "p"}, &sent, nil)

	err := m.Send(context.Background(), Message{From: "a@example.com", To: "b@example.com", Subject: "Hi", Body: "hello"})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "smtp.example.com:2525", sent[0].addr)
	assert.Equal(t, []string{"b@example.com"}, sent[0].to)
	assert.True(t, strings.HasPrefix(sent[0].msg, "To: b@example.com\r\nFrom: a@example.com\r\nSubject: Hi\r\n"))
	assert.True(t, strings.HasSuffix(sent[0].msg, "\r\n\r\nhello\r\n"))

	assert.Error(t, m.Send(context.Background(), Message{From: "a@example.com", Subject: "Hi"}))

	failing := fakeSMTP(SMTPConfig{Host: "h", Port: 25}, &sent, errors.New("421 try later"))
	err = failing.Send(context.Background(), Message{From: "a@example.com", To: "b@example.com", Subject: "Hi"})
	assert.ErrorContains(t, err, "421")
}

func TestMailNotifier(t *testing.T) {
	var sent []sentMail
	n := NewMailNotifier(fakeSMTP(SMTPConfig{Host: "h", Port: 25}, &sent, nil), "noreply@example.com", zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), models.ShareEvent{Type: models.EventCollaboratorAdded, TargetEmail: "c@example.com"}))
	require.NoError(t, n.Notify(context.Background(), models.ShareEvent{Type: models.EventCollaboratorAdded}))
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].msg, "You were added as a collaborator")
}

func TestRabbitMQRoundTrip(t *testing.T) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		t.Skip("RABBITMQ_URL not set")
	}
	queue := "studentkit-test-" + time.Now().Format("150405.000000")
	mq, err := NewRabbitMQ(url, queue, zap.NewNop())
	require.NoError(t, err)
	defer mq.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	want := models.ShareEvent{Type: models.EventUserShareCreated, ShareID: "s1", TargetEmail: "b@example.com"}
	require.NoError(t, mq.Notify(ctx, want))

	got := make(chan models.ShareEvent, 1)
	go func() {
		_ = mq.Consume(ctx, func(_ context.Context, e models.ShareEvent) error {
			got <- e
			return nil
		})
	}()
	select {
	case e := <-got:
		assert.Equal(t, want.ShareID, e.ShareID)
	case <-ctx.Done():
		t.Fatal("no event consumed")
	}
}
