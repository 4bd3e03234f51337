package testutil

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/storage"
)

// MockCallbacks mocks the copy callback protocol.
type MockCallbacks struct {
	mock.Mock
}

// NewMockCallbacks returns a mock that accepts any progress and log call.
// Decisions and cancellation still need expectations.
func NewMockCallbacks() *MockCallbacks {
	m := &MockCallbacks{}
	m.On("OnProgress", mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("OnLog", mock.Anything).Maybe()
	return m
}

func (m *MockCallbacks) OnConflict(target string) models.Resolution {
	args := m.Called(target)
	return args.Get(0).(models.Resolution)
}

func (m *MockCallbacks) OnError(source string, err error) models.ErrorDecision {
	args := m.Called(source, err)
	return args.Get(0).(models.ErrorDecision)
}

func (m *MockCallbacks) OnProgress(label string, copied, total int64) {
	m.Called(label, copied, total)
}

func (m *MockCallbacks) OnLog(msg string) {
	m.Called(msg)
}

func (m *MockCallbacks) IsCancelled() bool {
	return m.Called().Bool(0)
}

// FlakyStore wraps a target store and injects failures.
type FlakyStore struct {
	storage.TargetStore

	// FailTransfers is how many Transfer calls fail before they succeed.
	// A negative value fails every call.
	FailTransfers int
	// FailCommits is how many Commit calls fail before they succeed. The
	// staged file is left in place.
	FailCommits int
	// NoSpace makes HasCapacity report false.
	NoSpace bool

	Transfers   int
	Commits     int
	Discards    int
	ExistsCalls int
}

func (f *FlakyStore) Transfer(ctx context.Context, req storage.TransferRequest) (*storage.Staged, error) {
	f.Transfers++
	if f.FailTransfers < 0 || f.Transfers <= f.FailTransfers {
		return nil, models.NewTransferError("write", req.Target, io.ErrShortWrite)
	}
	return f.TargetStore.Transfer(ctx, req)
}

func (f *FlakyStore) Exists(path string) (bool, error) {
	f.ExistsCalls++
	return f.TargetStore.Exists(path)
}

func (f *FlakyStore) HasCapacity(path string, need int64) bool {
	if f.NoSpace {
		return false
	}
	return f.TargetStore.HasCapacity(path, need)
}

func (f *FlakyStore) Commit(staged *storage.Staged) error {
	f.Commits++
	if f.Commits <= f.FailCommits {
		return models.NewTransferError("rename", staged.FinalPath, io.ErrClosedPipe)
	}
	return f.TargetStore.Commit(staged)
}

func (f *FlakyStore) Discard(staged *storage.Staged) {
	f.Discards++
	f.TargetStore.Discard(staged)
}
