package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/config"
	"github.com/jafarshop/refundops/internal/domain"
	"github.com/jafarshop/refundops/internal/whatsapp"
)

type sentTemplate struct {
	to         string
	template   string
	language   string
	components []whatsapp.Component
}

type fakeSender struct {
	sent []sentTemplate
	err  error
}

func (f *fakeSender) SendTemplate(ctx context.Context, to, templateName, languageCode string, components []whatsapp.Component) (string, error) {
	f.sent = append(f.sent, sentTemplate{to: to, template: templateName, language: languageCode, components: components})
	if f.err != nil {
		return "", f.err
	}
	return "wamid.test", nil
}

func waConfig() config.WhatsAppConfig {
	return config.WhatsAppConfig{
		TemplateCompleted:        "refund_completed",
		TemplateCompletedReceipt: "refund_completed_receipt",
		TemplateInboundAck:       "inbound_ack",
		LanguageCode:             "es",
	}
}

func newNotify(sender *fakeSender) (*notifyService, *int) {
	svc := NewNotifyService(sender, waConfig(), zap.NewNop())
	gateCalls := 0
	svc.gate = func(ctx context.Context) { gateCalls++ }
	return svc, &gateCalls
}

func TestSendOneSuccess(t *testing.T) {
	sender := &fakeSender{}
	svc, _ := newNotify(sender)

	r := svc.SendOne(context.Background(), "50212345678", "refund_completed", []string{"Ana"})
	require.True(t, r.Success)
	require.Equal(t, "wamid.test", r.MessageID)

	require.Len(t, sender.sent, 1)
	require.Equal(t, "50212345678", sender.sent[0].to)
	require.Equal(t, "es", sender.sent[0].language)
}

func TestSendOneCapturesProviderFailure(t *testing.T) {
	sender := &fakeSender{err: stderrors.New("rate limited")}
	svc, _ := newNotify(sender)

	r := svc.SendOne(context.Background(), "50212345678", "refund_completed", nil)
	require.False(t, r.Success)
	require.Contains(t, r.Error, "rate limited")
}

func TestSendBulkPreservesOrderAndCardinality(t *testing.T) {
	sender := &fakeSender{}
	svc, gateCalls := newNotify(sender)

	items := []BulkSendItem{
		{ID: "a", Phone: "50211111111", Selected: true},
		{ID: "b", Phone: "50222222222", Selected: false},
		{ID: "c", Phone: "50233333333", Selected: true},
	}

	results := svc.SendBulk(context.Background(), "refund_completed", items)

	require.Len(t, results, 3)
	require.Equal(t, "a", results[0].ID)
	require.Equal(t, "b", results[1].ID)
	require.Equal(t, "c", results[2].ID)

	require.True(t, results[0].Success)
	require.True(t, results[1].Skipped)
	require.False(t, results[1].Success)
	require.True(t, results[2].Success)

	// no provider call for the unselected item
	require.Len(t, sender.sent, 2)
	// one gate pause between the two actual sends
	require.Equal(t, 1, *gateCalls)
}

func TestSendBulkValidatesPhone(t *testing.T) {
	sender := &fakeSender{}
	svc, _ := newNotify(sender)

	results := svc.SendBulk(context.Background(), "refund_completed", []BulkSendItem{
		{ID: "a", Phone: "123", Selected: true},
	})

	require.Len(t, results, 1)
	require.False(t, results[0].Success)
	require.False(t, results[0].Skipped)
	require.Contains(t, results[0].Error, "invalid phone number")
	require.Empty(t, sender.sent)
}

func TestNotifyRefundCompletedVariants(t *testing.T) {
	sender := &fakeSender{}
	svc, _ := newNotify(sender)

	record := &domain.RefundRecord{
		CustomerName: "Ana Lopez",
		OrderNumber:  "#1001",
		Phone:        "50212345678",
		RefundAmount: 150,
	}

	svc.NotifyRefundCompleted(context.Background(), record, "")
	svc.NotifyRefundCompleted(context.Background(), record, "https://cdn.example/r5.pdf")

	require.Len(t, sender.sent, 2)
	require.Equal(t, "refund_completed", sender.sent[0].template)
	require.Len(t, sender.sent[0].components[0].Parameters, 3)

	require.Equal(t, "refund_completed_receipt", sender.sent[1].template)
	params := sender.sent[1].components[0].Parameters
	require.Len(t, params, 4)
	require.Equal(t, "https://cdn.example/r5.pdf", params[3].Text)
}

func TestHandleInboundAcksTextOnly(t *testing.T) {
	sender := &fakeSender{}
	svc, _ := newNotify(sender)

	err := svc.HandleInbound(context.Background(), domain.InboundMessage{ID: "m1", From: "50212345678", Type: "image"})
	require.NoError(t, err)
	require.Empty(t, sender.sent)

	err = svc.HandleInbound(context.Background(), domain.InboundMessage{ID: "m2", From: "50212345678", Type: "text", Text: "hola"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	require.Equal(t, "inbound_ack", sender.sent[0].template)
}

func TestHandleInboundSurfacesSendFailure(t *testing.T) {
	sender := &fakeSender{err: stderrors.New("provider down")}
	svc, _ := newNotify(sender)

	err := svc.HandleInbound(context.Background(), domain.InboundMessage{ID: "m2", From: "50212345678", Type: "text"})
	require.Error(t, err)
}
