package service

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/domain"
	"github.com/jafarshop/refundops/internal/settlement"
	"github.com/jafarshop/refundops/pkg/errors"
)

type fakeStore struct {
	mu        sync.Mutex
	records   map[int]*domain.RefundRecord
	markErr   error
	markCalls int
}

func newFakeStore(records ...*domain.RefundRecord) *fakeStore {
	s := &fakeStore{records: make(map[int]*domain.RefundRecord)}
	for _, r := range records {
		s.records[r.RowIndex] = r
	}
	return s
}

func (s *fakeStore) ListAll(ctx context.Context) ([]*domain.RefundRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.RefundRecord
	for _, r := range s.records {
		if r.Status != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) GetByRowIndex(ctx context.Context, rowIndex int) (*domain.RefundRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[rowIndex]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "refund", ID: strconv.Itoa(rowIndex)}
	}
	copied := *r
	return &copied, nil
}

func (s *fakeStore) Create(ctx context.Context, record *domain.RefundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.RowIndex = len(s.records) + 1
	s.records[record.RowIndex] = record
	return nil
}

func (s *fakeStore) MarkCompleted(ctx context.Context, rowIndex int, receiptURL *string, completedBy string) (*domain.RefundRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	if s.markErr != nil {
		return nil, s.markErr
	}
	r, ok := s.records[rowIndex]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "refund", ID: strconv.Itoa(rowIndex)}
	}
	if r.ExtraData == nil {
		r.ExtraData = map[string]interface{}{}
	}
	r.Status = domain.RefundStatusCompleted
	r.ExtraData[domain.ExtraCompleted] = true
	r.ExtraData[domain.ExtraCompletedAt] = time.Now().Format(time.RFC3339)
	r.ExtraData[domain.ExtraCompletedBy] = completedBy
	if receiptURL != nil {
		r.ExtraData[domain.ExtraReceiptURL] = *receiptURL
	}
	copied := *r
	return &copied, nil
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (u *fakeUploader) Upload(ctx context.Context, data []byte, contentType, name string) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return u.url, nil
}

type fakeSettlement struct {
	configured bool
	err        error
	calls      int
	lastURL    *string
}

func (f *fakeSettlement) Configured() bool {
	return f.configured
}

func (f *fakeSettlement) CompleteDepositReturn(ctx context.Context, record *domain.RefundRecord, receiptURL *string) (*settlement.Result, error) {
	f.calls++
	f.lastURL = receiptURL
	if f.err != nil {
		return &settlement.Result{Success: false, Error: f.err.Error()}, f.err
	}
	return &settlement.Result{Success: true}, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	result  SendResult
	calls   int
	lastURL string
}

func (f *fakeNotifier) NotifyRefundCompleted(ctx context.Context, record *domain.RefundRecord, receiptURL string) SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastURL = receiptURL
	return f.result
}

func cashRefund(rowIndex int) *domain.RefundRecord {
	return &domain.RefundRecord{
		RowIndex:     rowIndex,
		OrderID:      "gid-1001",
		OrderNumber:  "#1001",
		CustomerName: "Ana Lopez",
		Phone:        "50212345678",
		RefundMethod: domain.RefundMethodCash,
		Status:       domain.RefundStatusInProgress,
		RefundAmount: 150.00,
	}
}

func depositRefund(rowIndex int) *domain.RefundRecord {
	r := cashRefund(rowIndex)
	r.RefundMethod = domain.RefundMethodBankDeposit
	r.ExtraData = map[string]interface{}{
		domain.ExtraReturnID: "return-77",
		"bank_account":       "001-123456",
	}
	return r
}

func newService(store *fakeStore, uploader *fakeUploader, settle *fakeSettlement, notifier *fakeNotifier) *refundService {
	return NewRefundService(store, uploader, settle, notifier, zap.NewNop())
}

func TestCompleteCashEndToEnd(t *testing.T) {
	store := newFakeStore(cashRefund(5))
	uploader := &fakeUploader{url: "https://cdn.example/r5.pdf"}
	settle := &fakeSettlement{configured: true}
	notifier := &fakeNotifier{result: SendResult{Success: true, MessageID: "wamid.10"}}
	svc := newService(store, uploader, settle, notifier)

	result, err := svc.Complete(context.Background(), 5, CompleteOptions{NotifyCustomer: true, CompletedBy: "maria"})
	require.NoError(t, err)

	require.Equal(t, 5, result.RowIndex)
	require.Equal(t, "gid-1001", result.OrderID)
	require.Equal(t, domain.RefundStatusCompleted, result.Status)
	require.Nil(t, result.ReceiptURL)
	require.Nil(t, result.SettlementResult)
	require.NotNil(t, result.NotificationResult)
	require.True(t, result.NotificationResult.Success)

	// no receipt supplied, no upload
	require.Equal(t, 0, uploader.calls)
	// cash refunds never touch the settlement service
	require.Equal(t, 0, settle.calls)

	record, err := store.GetByRowIndex(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, domain.RefundStatusCompleted, record.Status)
	require.Equal(t, true, record.ExtraData[domain.ExtraCompleted])
	require.Equal(t, "maria", record.ExtraData[domain.ExtraCompletedBy])
}

func TestCompleteTwiceReturnsAlreadyCompleted(t *testing.T) {
	store := newFakeStore(cashRefund(5))
	settle := &fakeSettlement{configured: true}
	notifier := &fakeNotifier{result: SendResult{Success: true}}
	svc := newService(store, &fakeUploader{}, settle, notifier)

	_, err := svc.Complete(context.Background(), 5, CompleteOptions{NotifyCustomer: true})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), 5, CompleteOptions{NotifyCustomer: true})
	var alreadyErr *errors.ErrAlreadyCompleted
	require.ErrorAs(t, err, &alreadyErr)
	require.Equal(t, 5, alreadyErr.RowIndex)

	// second call must not re-settle or re-notify
	require.Equal(t, 0, settle.calls)
	require.Equal(t, 1, notifier.calls)
	require.Equal(t, 1, store.markCalls)
}

func TestCompleteNonCriticalFailuresDoNotBlock(t *testing.T) {
	store := newFakeStore(cashRefund(5))
	uploader := &fakeUploader{err: stderrors.New("bucket exploded")}
	notifier := &fakeNotifier{result: SendResult{Success: false, Error: "provider down"}}
	svc := newService(store, uploader, &fakeSettlement{}, notifier)

	result, err := svc.Complete(context.Background(), 5, CompleteOptions{
		NotifyCustomer: true,
		Receipt:        &ReceiptDocument{Data: []byte("pdf"), ContentType: "application/pdf"},
	})
	require.NoError(t, err)

	require.Equal(t, domain.RefundStatusCompleted, result.Status)
	require.Nil(t, result.ReceiptURL)
	require.NotNil(t, result.ReceiptResult)
	require.False(t, result.ReceiptResult.Success)
	require.NotNil(t, result.NotificationResult)
	require.False(t, result.NotificationResult.Success)

	record, _ := store.GetByRowIndex(context.Background(), 5)
	require.Equal(t, domain.RefundStatusCompleted, record.Status)
}

func TestCompleteStoreFailureIsFatal(t *testing.T) {
	store := newFakeStore(cashRefund(5))
	store.markErr = &errors.ErrStoreUnavailable{Op: "mark refund completed", Err: stderrors.New("connection reset")}
	notifier := &fakeNotifier{result: SendResult{Success: true}}
	svc := newService(store, &fakeUploader{}, &fakeSettlement{}, notifier)

	_, err := svc.Complete(context.Background(), 5, CompleteOptions{NotifyCustomer: true})
	var storeErr *errors.ErrStoreUnavailable
	require.ErrorAs(t, err, &storeErr)

	// no notification after a failed persist
	require.Equal(t, 0, notifier.calls)

	record, getErr := store.GetByRowIndex(context.Background(), 5)
	require.NoError(t, getErr)
	require.Equal(t, domain.RefundStatusInProgress, record.Status)
}

func TestCompleteDepositWithoutCredentialsSkipsSettlement(t *testing.T) {
	store := newFakeStore(depositRefund(3))
	settle := &fakeSettlement{configured: false}
	svc := newService(store, &fakeUploader{}, settle, &fakeNotifier{result: SendResult{Success: true}})

	result, err := svc.Complete(context.Background(), 3, CompleteOptions{NotifyCustomer: true})
	require.NoError(t, err)

	require.Nil(t, result.SettlementResult)
	require.Equal(t, 0, settle.calls)
	require.Equal(t, domain.RefundStatusCompleted, result.Status)
}

func TestCompleteDepositCallsSettlement(t *testing.T) {
	store := newFakeStore(depositRefund(3))
	uploader := &fakeUploader{url: "https://cdn.example/r3.pdf"}
	settle := &fakeSettlement{configured: true}
	svc := newService(store, uploader, settle, &fakeNotifier{result: SendResult{Success: true}})

	result, err := svc.Complete(context.Background(), 3, CompleteOptions{
		NotifyCustomer: true,
		Receipt:        &ReceiptDocument{Data: []byte("pdf"), ContentType: "application/pdf", Name: "deposit.pdf"},
	})
	require.NoError(t, err)

	require.Equal(t, 1, settle.calls)
	require.NotNil(t, settle.lastURL)
	require.Equal(t, "https://cdn.example/r3.pdf", *settle.lastURL)
	require.NotNil(t, result.SettlementResult)
	require.True(t, result.SettlementResult.Success)
	require.NotNil(t, result.ReceiptURL)
	require.Equal(t, "https://cdn.example/r3.pdf", *result.ReceiptURL)
}

func TestCompleteSettlementFailureIsReported(t *testing.T) {
	store := newFakeStore(depositRefund(3))
	settle := &fakeSettlement{configured: true, err: stderrors.New("pos timeout")}
	svc := newService(store, &fakeUploader{}, settle, &fakeNotifier{result: SendResult{Success: true}})

	result, err := svc.Complete(context.Background(), 3, CompleteOptions{NotifyCustomer: true})
	require.NoError(t, err)

	require.NotNil(t, result.SettlementResult)
	require.False(t, result.SettlementResult.Success)
	require.Contains(t, result.SettlementResult.Error, "pos timeout")
	require.Equal(t, domain.RefundStatusCompleted, result.Status)
}

func TestCompleteNotFound(t *testing.T) {
	svc := newService(newFakeStore(), &fakeUploader{}, &fakeSettlement{}, &fakeNotifier{})

	_, err := svc.Complete(context.Background(), 99, CompleteOptions{})
	var notFoundErr *errors.ErrNotFound
	require.ErrorAs(t, err, &notFoundErr)
}

func TestCompleteSkipsNotificationWithoutPhone(t *testing.T) {
	record := cashRefund(5)
	record.Phone = ""
	store := newFakeStore(record)
	notifier := &fakeNotifier{result: SendResult{Success: true}}
	svc := newService(store, &fakeUploader{}, &fakeSettlement{}, notifier)

	result, err := svc.Complete(context.Background(), 5, CompleteOptions{NotifyCustomer: true})
	require.NoError(t, err)
	require.Nil(t, result.NotificationResult)
	require.Equal(t, 0, notifier.calls)
}

func TestCompleteConcurrentSameRow(t *testing.T) {
	store := newFakeStore(cashRefund(5))
	settle := &fakeSettlement{configured: true}
	notifier := &fakeNotifier{result: SendResult{Success: true}}
	svc := newService(store, &fakeUploader{}, settle, notifier)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = svc.Complete(context.Background(), 5, CompleteOptions{NotifyCustomer: true})
		}(i)
	}
	wg.Wait()

	var completed, rejected int
	for _, err := range errs {
		if err == nil {
			completed++
			continue
		}
		var alreadyErr *errors.ErrAlreadyCompleted
		require.ErrorAs(t, err, &alreadyErr)
		rejected++
	}

	require.Equal(t, 1, completed)
	require.Equal(t, 1, rejected)
	require.Equal(t, 1, store.markCalls)
	require.Equal(t, 1, notifier.calls)
}

func TestResend(t *testing.T) {
	record := cashRefund(5)
	record.Status = domain.RefundStatusCompleted
	record.ExtraData = map[string]interface{}{
		domain.ExtraCompleted:  true,
		domain.ExtraReceiptURL: "https://cdn.example/r5.pdf",
	}
	store := newFakeStore(record)
	notifier := &fakeNotifier{result: SendResult{Success: true, MessageID: "wamid.22"}}
	svc := newService(store, &fakeUploader{}, &fakeSettlement{}, notifier)

	result, err := svc.Resend(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "wamid.22", result.MessageID)
	require.Equal(t, "https://cdn.example/r5.pdf", notifier.lastURL)
}

func TestResendRequiresCompleted(t *testing.T) {
	store := newFakeStore(cashRefund(5))
	svc := newService(store, &fakeUploader{}, &fakeSettlement{}, &fakeNotifier{})

	_, err := svc.Resend(context.Background(), 5)
	var transitionErr *errors.ErrInvalidStateTransition
	require.ErrorAs(t, err, &transitionErr)
}

func TestResendRequiresPhone(t *testing.T) {
	record := cashRefund(5)
	record.Status = domain.RefundStatusCompleted
	record.Phone = ""
	store := newFakeStore(record)
	svc := newService(store, &fakeUploader{}, &fakeSettlement{}, &fakeNotifier{})

	_, err := svc.Resend(context.Background(), 5)
	require.Error(t, err)
}

func TestCreateAssignsRowIndex(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeUploader{}, &fakeSettlement{}, &fakeNotifier{})

	record, err := svc.Create(context.Background(), CreateRefundRequest{
		OrderID:      "gid-2002",
		CustomerName: "Luis Perez",
		RefundMethod: "web",
		RefundAmount: 80,
		LineItems:    []LineItemRequest{{Name: "Mug", Quantity: 2, RefundAmount: 40}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, record.RowIndex)
	require.Equal(t, domain.RefundStatusInProgress, record.Status)
	require.Len(t, record.LineItems, 1)
}

func TestCreateRejectsUnknownMethod(t *testing.T) {
	svc := newService(newFakeStore(), &fakeUploader{}, &fakeSettlement{}, &fakeNotifier{})

	_, err := svc.Create(context.Background(), CreateRefundRequest{
		OrderID:      "gid-2002",
		CustomerName: "Luis Perez",
		RefundMethod: "store_credit",
	})
	require.Error(t, err)
}
