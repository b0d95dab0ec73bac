package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisher_SendMessage(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.local/orders")

	err := p.SendMessage(context.Background(), `{"type":"order.created"}`, map[string]string{
		"event_type":     "order.created",
		"correlation_id": "",
	})
	require.NoError(t, err)
	require.Len(t, mock.inputs, 1)

	in := mock.inputs[0]
	assert.Equal(t, "https://sqs.local/orders", *in.QueueUrl)
	assert.Equal(t, `{"type":"order.created"}`, *in.MessageBody)
	require.Contains(t, in.MessageAttributes, "event_type")
	assert.Equal(t, "order.created", *in.MessageAttributes["event_type"].StringValue)
	assert.NotContains(t, in.MessageAttributes, "correlation_id")
}

func TestPublisher_SendMessage_Error(t *testing.T) {
	p := NewPublisher(&mockSQS{err: errors.New("throttled")}, "q")
	err := p.SendMessage(context.Background(), "{}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
