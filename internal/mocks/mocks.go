package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/classbridge/chatkit/internal/domain"
)

// SocketMock stands in for *ws.Socket behind the chat and notify
// transport interfaces.
type SocketMock struct {
	mock.Mock
}

func (m *SocketMock) Connect() {
	m.Called()
}

func (m *SocketMock) Disconnect() {
	m.Called()
}

func (m *SocketMock) Send(v any) {
	m.Called(v)
}

func (m *SocketMock) SendText(text string) {
	m.Called(text)
}

// HistoryMock stands in for the REST history fetcher.
type HistoryMock struct {
	mock.Mock
}

func (m *HistoryMock) GroupMessages(ctx context.Context, groupID int) ([]domain.Message, error) {
	args := m.Called(ctx, groupID)
	var msgs []domain.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]domain.Message)
	}
	return msgs, args.Error(1)
}

// ConnectorMock stands in for a group client's lifecycle surface.
type ConnectorMock struct {
	mock.Mock
}

func (m *ConnectorMock) Connect() {
	m.Called()
}

func (m *ConnectorMock) Close() {
	m.Called()
}
