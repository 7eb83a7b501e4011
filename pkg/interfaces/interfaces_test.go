package interfaces_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dinepick/pkg/interfaces"
	"dinepick/pkg/types"
)

type mockConnection struct {
	frames [][]byte
	closed bool
}

func (m *mockConnection) ID() string { return "conn-1" }
func (m *mockConnection) Enqueue(data []byte) error {
	m.frames = append(m.frames, data)
	return nil
}
func (m *mockConnection) Close() error { m.closed = true; return nil }

type mockTransport struct{}

func (mockTransport) JoinRoom(room, connID string)                      {}
func (mockTransport) LeaveRoom(room, connID string)                     {}
func (mockTransport) CloseRoom(room string)                             {}
func (mockTransport) Broadcast(room, event string, payload interface{}) {}
func (mockTransport) Send(connID, event string, payload interface{}) error {
	return nil
}

type failingProvider struct{}

func (failingProvider) Search(ctx context.Context, q types.CandidateQuery) ([]types.Candidate, error) {
	return nil, fmt.Errorf("%w: timeout", interfaces.ErrUpstreamProvider)
}

func TestInterfaces_ArchitecturalCompliance(t *testing.T) {
	var _ interfaces.Connection = &mockConnection{}
	var _ interfaces.Transport = mockTransport{}
	var _ interfaces.CandidateProvider = failingProvider{}
}

func TestConnection_InterfaceContract(t *testing.T) {
	var conn interfaces.Connection = &mockConnection{}
	require.NoError(t, conn.Enqueue([]byte(`{"event":"voteUpdate"}`)))
	require.NoError(t, conn.Close())

	mc := conn.(*mockConnection)
	assert.Len(t, mc.frames, 1)
	assert.True(t, mc.closed)
}

func TestCandidateProvider_ErrorContract(t *testing.T) {
	var p interfaces.CandidateProvider = failingProvider{}
	_, err := p.Search(context.Background(), types.CandidateQuery{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrUpstreamProvider))
}
