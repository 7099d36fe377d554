package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), 10)
	require.NoError(t, err)
	return s
}

func TestRegister_Success(t *testing.T) {
	s := newTestStore(t)

	account, err := s.Register(context.Background(), "13812345678", "secret1")

	require.NoError(t, err)
	assert.Equal(t, "13812345678", account.Phone)
	assert.Equal(t, 10, account.RemainingUses)
	assert.Equal(t, 0, account.ImagesGenerated)
	assert.False(t, account.CreatedAt.IsZero())
	assert.Nil(t, account.LastLoginAt)
}

func TestRegister_InvalidPhone(t *testing.T) {
	s := newTestStore(t)

	for _, phone := range []string{
		"",
		"12812345678",  // second digit out of range
		"23812345678",  // must start with 1
		"1381234567",   // too short
		"138123456789", // too long
		"13812345a78",  // non-digit
	} {
		_, err := s.Register(context.Background(), phone, "secret1")
		assert.ErrorIs(t, err, ErrInvalidPhone, "phone %q", phone)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Register(context.Background(), "13812345678", "12345")

	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRegister_Duplicate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Register(context.Background(), "13812345678", "secret1")
	require.NoError(t, err)

	_, err = s.Register(context.Background(), "13812345678", "other-password")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAuthenticate(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Register(context.Background(), "13812345678", "secret1")
	require.NoError(t, err)

	account, err := s.Authenticate(context.Background(), "13812345678", "secret1")
	require.NoError(t, err)
	require.NotNil(t, account.LastLoginAt)

	_, err = s.Authenticate(context.Background(), "13812345678", "wrong-pass")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = s.Authenticate(context.Background(), "13999999999", "secret1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChargeGeneration_DecrementsUntilExhausted(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Register(context.Background(), "13812345678", "secret1")
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		usage, err := s.ChargeGeneration(context.Background(), "13812345678")
		require.NoError(t, err)
		assert.Equal(t, 10-i, usage.RemainingUses)
		assert.Equal(t, i, usage.ImagesGenerated)
	}

	_, err = s.ChargeGeneration(context.Background(), "13812345678")
	assert.ErrorIs(t, err, ErrExhausted)

	// a failed charge must not move the counters
	account, err := s.Get(context.Background(), "13812345678")
	require.NoError(t, err)
	assert.Equal(t, 0, account.RemainingUses)
	assert.Equal(t, 10, account.ImagesGenerated)
}

func TestChargeGeneration_UnknownPhone(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ChargeGeneration(context.Background(), "13812345678")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetUses(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Register(context.Background(), "13812345678", "secret1")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := s.ChargeGeneration(context.Background(), "13812345678")
		require.NoError(t, err)
	}

	require.NoError(t, s.ResetUses(context.Background(), "13812345678", 50))

	account, err := s.Get(context.Background(), "13812345678")
	require.NoError(t, err)
	assert.Equal(t, 50, account.RemainingUses)
	assert.Equal(t, 10, account.ImagesGenerated, "reset must not touch the generated counter")

	assert.ErrorIs(t, s.ResetUses(context.Background(), "13999999999", 5), ErrNotFound)
	assert.Error(t, s.ResetUses(context.Background(), "13812345678", -1))
}

func TestListAll_Tallies(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Register(context.Background(), "13812345678", "secret1")
	require.NoError(t, err)
	_, err = s.Register(context.Background(), "15012345678", "secret2")
	require.NoError(t, err)
	_, err = s.ChargeGeneration(context.Background(), "13812345678")
	require.NoError(t, err)

	accounts, stats, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalImages)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileStore(dir, 10)
	require.NoError(t, err)
	_, err = s.Register(context.Background(), "13812345678", "secret1")
	require.NoError(t, err)
	_, err = s.ChargeGeneration(context.Background(), "13812345678")
	require.NoError(t, err)

	reopened, err := NewFileStore(dir, 10)
	require.NoError(t, err)

	account, err := reopened.Get(context.Background(), "13812345678")
	require.NoError(t, err)
	assert.Equal(t, 9, account.RemainingUses)
	assert.Equal(t, 1, account.ImagesGenerated)

	_, stats, err := reopened.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalImages)
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("13812345678"))
	assert.True(t, ValidPhone("19912345678"))
	assert.False(t, ValidPhone("10812345678"))
	assert.False(t, ValidPhone("038123456781"))
}
