package passwordreset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qubdrive/api/internal/application/otp"
	"github.com/qubdrive/api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockFlowStore struct{ mock.Mock }

func (m *mockFlowStore) Put(ctx context.Context, f *domain.PasswordResetFlow) error {
	return m.Called(ctx, f).Error(0)
}
func (m *mockFlowStore) Get(ctx context.Context, email string) (*domain.PasswordResetFlow, error) {
	args := m.Called(ctx, email)
	if f, _ := args.Get(0).(*domain.PasswordResetFlow); f != nil {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockFlowStore) Deactivate(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) DisableByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockEngine struct{ mock.Mock }

func (m *mockEngine) Generate(ctx context.Context, email string, purpose domain.OtpPurpose, metadata map[string]string) (*otp.GenerateResult, error) {
	args := m.Called(ctx, email, purpose, metadata)
	if r, _ := args.Get(0).(*otp.GenerateResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockEngine) Verify(ctx context.Context, email, code string, purpose domain.OtpPurpose) (*otp.VerifyResult, error) {
	args := m.Called(ctx, email, code, purpose)
	if r, _ := args.Get(0).(*otp.VerifyResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockEngine) Resend(ctx context.Context, email string, purpose domain.OtpPurpose, metadata map[string]string) (*otp.GenerateResult, error) {
	args := m.Called(ctx, email, purpose, metadata)
	if r, _ := args.Get(0).(*otp.GenerateResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockEngine) Invalidate(ctx context.Context, email string, purpose domain.OtpPurpose) error {
	return m.Called(ctx, email, purpose).Error(0)
}
func (m *mockEngine) Status(ctx context.Context, email string, purpose domain.OtpPurpose) (*otp.StatusResult, error) {
	args := m.Called(ctx, email, purpose)
	if r, _ := args.Get(0).(*otp.StatusResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) SendSecurityAlert(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

// --- builders ---

func newService(fs *mockFlowStore, us *mockUserStore, ss *mockSessionStore, eng *mockEngine, nt *mockNotifier, sms SMSSender) Service {
	return NewService(Deps{
		Flows:    fs,
		Users:    us,
		Sessions: ss,
		Otp:      eng,
		Notifier: nt,
		SMS:      sms,
		FlowTTL:  time.Hour,
	})
}

func activeFlow() *domain.PasswordResetFlow {
	now := time.Now().UTC()
	return &domain.PasswordResetFlow{
		ID:        "flow1",
		Email:     "a@x.com",
		Active:    true,
		CreatedAt: now.Add(-5 * time.Minute),
		ExpiresAt: now.Add(55 * time.Minute),
	}
}

func enabledUser() *domain.User {
	return &domain.User{UserID: "u1", Email: "a@x.com", Enable: true}
}

// --- Request ---

func TestRequest_UnknownEmailSameResponse(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	us.On("GetByEmail", mock.Anything, "ghost@x.com").Return(nil, domain.ErrNotFound)

	res, err := newService(fs, us, ss, eng, nt, nil).Request(context.Background(), "ghost@x.com")

	require.NoError(t, err)
	assert.Equal(t, GenericRequestMessage, res.Message)
	fs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	eng.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequest_DisabledAccountSameResponse(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	u := enabledUser()
	u.Enable = false
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(u, nil)

	res, err := newService(fs, us, ss, eng, nt, nil).Request(context.Background(), "a@x.com")

	require.NoError(t, err)
	assert.Equal(t, GenericRequestMessage, res.Message)
	fs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRequest_KnownEmailCreatesFlowAndCode(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(enabledUser(), nil)
	fs.On("Put", mock.Anything, mock.MatchedBy(func(f *domain.PasswordResetFlow) bool {
		return f.Email == "a@x.com" && f.Active && f.ExpiresAt.After(f.CreatedAt)
	})).Return(nil)
	eng.On("Generate", mock.Anything, "a@x.com", domain.PurposePasswordReset, mock.Anything).
		Return(&otp.GenerateResult{ID: "otp1", ExpiresAt: time.Now().Add(10 * time.Minute)}, nil)

	res, err := newService(fs, us, ss, eng, nt, nil).Request(context.Background(), "A@x.com ")

	require.NoError(t, err)
	assert.Equal(t, GenericRequestMessage, res.Message)
	fs.AssertExpectations(t)
	eng.AssertExpectations(t)
}

func TestRequest_RateLimitedStillGenericResponse(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(enabledUser(), nil)
	fs.On("Put", mock.Anything, mock.Anything).Return(nil)
	eng.On("Generate", mock.Anything, "a@x.com", domain.PurposePasswordReset, mock.Anything).
		Return(nil, &domain.RateLimitedError{RetryAfter: 42 * time.Second})

	res, err := newService(fs, us, ss, eng, nt, nil).Request(context.Background(), "a@x.com")

	require.NoError(t, err)
	assert.Equal(t, GenericRequestMessage, res.Message)
}

func TestRequest_StoreFailureStillGenericResponse(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(enabledUser(), nil)
	fs.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	res, err := newService(fs, us, ss, eng, nt, nil).Request(context.Background(), "a@x.com")

	require.NoError(t, err)
	assert.Equal(t, GenericRequestMessage, res.Message)
	eng.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- VerifyOtp ---

func TestVerifyOtp_NoFlow(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)

	res, err := newService(fs, us, ss, eng, nt, nil).VerifyOtp(context.Background(), "a@x.com", "123456")

	require.NoError(t, err)
	assert.False(t, res.Success)
	eng.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyOtp_InactiveFlow(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	f := activeFlow()
	f.Active = false
	fs.On("Get", mock.Anything, "a@x.com").Return(f, nil)

	res, err := newService(fs, us, ss, eng, nt, nil).VerifyOtp(context.Background(), "a@x.com", "123456")

	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestVerifyOtp_WrongCodePassesThroughRemaining(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(activeFlow(), nil)
	remaining := 2
	eng.On("Verify", mock.Anything, "a@x.com", "000000", domain.PurposePasswordReset).
		Return(&otp.VerifyResult{Success: false, Message: otp.MsgInvalidCode, RemainingAttempts: &remaining}, nil)

	res, err := newService(fs, us, ss, eng, nt, nil).VerifyOtp(context.Background(), "a@x.com", "000000")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, otp.MsgInvalidCode, res.Message)
	require.NotNil(t, res.RemainingAttempts)
	assert.Equal(t, 2, *res.RemainingAttempts)
	assert.Zero(t, res.ValidForMinutes)
}

func TestVerifyOtp_SuccessReportsFlowValidity(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(activeFlow(), nil)
	eng.On("Verify", mock.Anything, "a@x.com", "123456", domain.PurposePasswordReset).
		Return(&otp.VerifyResult{Success: true, Message: otp.MsgVerified}, nil)

	res, err := newService(fs, us, ss, eng, nt, nil).VerifyOtp(context.Background(), "a@x.com", "123456")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Greater(t, res.ValidForMinutes, 50)
}

// --- ResetWithOtp ---

func TestResetWithOtp_PasswordMismatch(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}

	_, err := newService(fs, us, ss, eng, nt, nil).ResetWithOtp(context.Background(), "a@x.com", "123456", "newpass123", "different")

	require.ErrorIs(t, err, domain.ErrBadRequest)
	fs.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestResetWithOtp_ShortPassword(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}

	_, err := newService(fs, us, ss, eng, nt, nil).ResetWithOtp(context.Background(), "a@x.com", "123456", "short", "short")

	require.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestResetWithOtp_ExpiredFlow(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	f := activeFlow()
	f.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	fs.On("Get", mock.Anything, "a@x.com").Return(f, nil)

	res, err := newService(fs, us, ss, eng, nt, nil).ResetWithOtp(context.Background(), "a@x.com", "123456", "newpass123", "newpass123")

	require.NoError(t, err)
	assert.False(t, res.Success)
	eng.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResetWithOtp_WrongCodeFailsResult(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(activeFlow(), nil)
	remaining := 1
	eng.On("Verify", mock.Anything, "a@x.com", "000000", domain.PurposePasswordReset).
		Return(&otp.VerifyResult{Success: false, Message: otp.MsgInvalidCode, RemainingAttempts: &remaining}, nil)

	res, err := newService(fs, us, ss, eng, nt, nil).ResetWithOtp(context.Background(), "a@x.com", "000000", "newpass123", "newpass123")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, otp.MsgInvalidCode, res.Message)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	ss.AssertNotCalled(t, "DisableByUser", mock.Anything, mock.Anything)
}

func TestResetWithOtp_SuccessStoresHashAndRevokesSessions(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(activeFlow(), nil)
	eng.On("Verify", mock.Anything, "a@x.com", "123456", domain.PurposePasswordReset).
		Return(&otp.VerifyResult{Success: true, Message: otp.MsgVerified}, nil)
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(enabledUser(), nil)
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(updates map[string]interface{}) bool {
		hash, ok := updates["password_hash"].(string)
		return ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte("newpass123")) == nil
	})).Return(nil)
	fs.On("Deactivate", mock.Anything, "a@x.com").Return(nil)
	ss.On("DisableByUser", mock.Anything, "u1").Return(nil)
	nt.On("SendSecurityAlert", "a@x.com", mock.Anything, mock.Anything).Return(nil)

	res, err := newService(fs, us, ss, eng, nt, nil).ResetWithOtp(context.Background(), "a@x.com", "123456", "newpass123", "newpass123")

	require.NoError(t, err)
	assert.True(t, res.Success)
	fs.AssertExpectations(t)
	us.AssertExpectations(t)
	ss.AssertExpectations(t)
	nt.AssertExpectations(t)
}

func TestResetWithOtp_AlertFailureTolerated(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(activeFlow(), nil)
	eng.On("Verify", mock.Anything, "a@x.com", "123456", domain.PurposePasswordReset).
		Return(&otp.VerifyResult{Success: true, Message: otp.MsgVerified}, nil)
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(enabledUser(), nil)
	us.On("Update", mock.Anything, "u1", mock.Anything).Return(nil)
	fs.On("Deactivate", mock.Anything, "a@x.com").Return(nil)
	ss.On("DisableByUser", mock.Anything, "u1").Return(nil)
	nt.On("SendSecurityAlert", "a@x.com", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	res, err := newService(fs, us, ss, eng, nt, nil).ResetWithOtp(context.Background(), "a@x.com", "123456", "newpass123", "newpass123")

	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestResetWithOtp_SMSAlertWhenPhoneOnFile(t *testing.T) {
	fs, us, ss, eng, nt, sms := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}, &mockSMS{}
	phone := "+15551234567"
	u := enabledUser()
	u.Phone = &phone
	fs.On("Get", mock.Anything, "a@x.com").Return(activeFlow(), nil)
	eng.On("Verify", mock.Anything, "a@x.com", "123456", domain.PurposePasswordReset).
		Return(&otp.VerifyResult{Success: true, Message: otp.MsgVerified}, nil)
	us.On("GetByEmail", mock.Anything, "a@x.com").Return(u, nil)
	us.On("Update", mock.Anything, "u1", mock.Anything).Return(nil)
	fs.On("Deactivate", mock.Anything, "a@x.com").Return(nil)
	ss.On("DisableByUser", mock.Anything, "u1").Return(nil)
	nt.On("SendSecurityAlert", "a@x.com", mock.Anything, mock.Anything).Return(nil)
	sms.On("SendSMS", mock.Anything, phone, mock.Anything).Return(nil)

	res, err := newService(fs, us, ss, eng, nt, sms).ResetWithOtp(context.Background(), "a@x.com", "123456", "newpass123", "newpass123")

	require.NoError(t, err)
	assert.True(t, res.Success)
	sms.AssertExpectations(t)
}

// --- Resend / Cancel / Status ---

func TestResend_Delegates(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(activeFlow(), nil)
	eng.On("Resend", mock.Anything, "a@x.com", domain.PurposePasswordReset, map[string]string{"flow_id": "flow1"}).
		Return(&otp.GenerateResult{ID: "otp2", ExpiresAt: time.Now().Add(10 * time.Minute)}, nil)

	res, err := newService(fs, us, ss, eng, nt, nil).Resend(context.Background(), "a@x.com")

	require.NoError(t, err)
	assert.Equal(t, "otp2", res.ID)
}

func TestResend_NoFlow(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)

	_, err := newService(fs, us, ss, eng, nt, nil).Resend(context.Background(), "a@x.com")

	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancel_DeactivatesFlow(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(activeFlow(), nil)
	eng.On("Invalidate", mock.Anything, "a@x.com", domain.PurposePasswordReset).Return(nil)
	fs.On("Deactivate", mock.Anything, "a@x.com").Return(nil)

	err := newService(fs, us, ss, eng, nt, nil).Cancel(context.Background(), "a@x.com")

	require.NoError(t, err)
	fs.AssertExpectations(t)
	eng.AssertCalled(t, "Invalidate", mock.Anything, "a@x.com", domain.PurposePasswordReset)
}

func TestStatus_ActiveFlowIncludesOtp(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(activeFlow(), nil)
	eng.On("Status", mock.Anything, "a@x.com", domain.PurposePasswordReset).
		Return(&otp.StatusResult{HasActiveOtp: true, AttemptsUsed: 1, CanResend: true}, nil)

	res, err := newService(fs, us, ss, eng, nt, nil).Status(context.Background(), "a@x.com")

	require.NoError(t, err)
	assert.True(t, res.Active)
	require.NotNil(t, res.Otp)
	assert.True(t, res.Otp.HasActiveOtp)
}

func TestStatus_NoFlow(t *testing.T) {
	fs, us, ss, eng, nt := &mockFlowStore{}, &mockUserStore{}, &mockSessionStore{}, &mockEngine{}, &mockNotifier{}
	fs.On("Get", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound)

	res, err := newService(fs, us, ss, eng, nt, nil).Status(context.Background(), "a@x.com")

	require.NoError(t, err)
	assert.False(t, res.Active)
	eng.AssertNotCalled(t, "Status", mock.Anything, mock.Anything, mock.Anything)
}
