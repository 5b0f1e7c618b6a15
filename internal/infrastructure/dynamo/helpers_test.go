package dynamo

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubdrive/api/internal/domain"
)

func TestStrKey(t *testing.T) {
	key := strKey("email", "a@x.com")
	require.Len(t, key, 1)
	assert.Equal(t, "a@x.com", key["email"].(*types.AttributeValueMemberS).Value)
}

func TestCompositeKey(t *testing.T) {
	key := compositeKey("email", "a@x.com", "purpose", "registration")
	require.Len(t, key, 2)
	assert.Equal(t, "a@x.com", key["email"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "registration", key["purpose"].(*types.AttributeValueMemberS).Value)
}

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{"is_used": true})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", expr)
	assert.Equal(t, "is_used", names["#f0"])
	assert.True(t, values[":v0"].(*types.AttributeValueMemberBOOL).Value)
}

func TestBuildUpdateExpr_MultipleFields(t *testing.T) {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{
		"step":   "details_pending",
		"enable": false,
	})
	require.NoError(t, err)
	assert.Len(t, names, 2)
	assert.Len(t, values, 2)
	assert.Contains(t, expr, "SET ")
	assert.Contains(t, expr, ", ")
}

func TestBuildUpdateExpr_Empty(t *testing.T) {
	_, _, _, err := buildUpdateExpr(map[string]interface{}{})
	require.Error(t, err)
}

// --- cleanup sweep predicates ---

func TestOtpSweepable(t *testing.T) {
	cutoff := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	live := &domain.OtpRecord{ExpiresAt: cutoff.Add(time.Minute)}
	assert.False(t, otpSweepable(live, cutoff))

	expired := &domain.OtpRecord{ExpiresAt: cutoff.Add(-time.Minute)}
	assert.True(t, otpSweepable(expired, cutoff))

	used := &domain.OtpRecord{IsUsed: true, ExpiresAt: cutoff.Add(time.Minute)}
	assert.True(t, otpSweepable(used, cutoff))
}

// A record expiring on a whole second must be swept by a cutoff a fraction of
// a second later. Comparing the stored strings would get this wrong: the
// serialized cutoff carries a fraction and the record's timestamp does not,
// so the record sorts after the cutoff lexicographically.
func TestOtpSweepable_SubSecondCutoff(t *testing.T) {
	expiresAt := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	cutoff := expiresAt.Add(500 * time.Millisecond)

	rec := &domain.OtpRecord{ExpiresAt: expiresAt}
	assert.True(t, otpSweepable(rec, cutoff))
	assert.False(t, otpSweepable(rec, expiresAt.Add(-500*time.Millisecond)))
}

// Sweepability must hold after a round trip through the attribute codec,
// which serializes timestamps with variable-width fractions.
func TestOtpSweepable_AfterAttributeRoundTrip(t *testing.T) {
	expiresAt := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	item, err := attributevalue.MarshalMap(&domain.OtpRecord{
		Email:     "a@x.com",
		Purpose:   domain.PurposeRegistration,
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)

	var rec domain.OtpRecord
	require.NoError(t, attributevalue.UnmarshalMap(item, &rec))
	assert.True(t, otpSweepable(&rec, expiresAt.Add(500*time.Millisecond)))
}

func TestRegistrationSweepable(t *testing.T) {
	expiresAt := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	assert.False(t, registrationSweepable(&domain.RegistrationFlow{ExpiresAt: expiresAt}, expiresAt))
	assert.True(t, registrationSweepable(&domain.RegistrationFlow{ExpiresAt: expiresAt}, expiresAt.Add(500*time.Millisecond)))
}

func TestResetFlowSweepable(t *testing.T) {
	expiresAt := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	assert.False(t, resetFlowSweepable(&domain.PasswordResetFlow{Active: true, ExpiresAt: expiresAt.Add(time.Minute)}, expiresAt))
	assert.True(t, resetFlowSweepable(&domain.PasswordResetFlow{Active: false, ExpiresAt: expiresAt.Add(time.Minute)}, expiresAt))
	assert.True(t, resetFlowSweepable(&domain.PasswordResetFlow{Active: true, ExpiresAt: expiresAt}, expiresAt.Add(500*time.Millisecond)))
}
