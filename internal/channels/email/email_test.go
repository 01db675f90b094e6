// internal/channels/email/email_test.go
package email

import (
	"context"
	"fmt"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bushfire-beacon/internal/channels"
	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
)

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, input, optFns...)
}

func testMessage() channels.Message {
	return channels.Message{
		Subject: "[HIGH] fire alert for R1",
		Body:    "A fire hazard has been reported in region R1.",
	}
}

func TestAdapter_Send_Success(t *testing.T) {
	var captured *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = input
			return &ses.SendEmailOutput{MessageId: awssdk.String("msg-123")}, nil
		},
	}

	a := New(mock, "alerts@beacon.example.org", logger.NewTestLogger(t))
	err := a.Send(context.Background(), "alice@example.org", testMessage())

	assert.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "alerts@beacon.example.org", awssdk.ToString(captured.Source))
	assert.Equal(t, []string{"alice@example.org"}, captured.Destination.ToAddresses)
	assert.Equal(t, "[HIGH] fire alert for R1", awssdk.ToString(captured.Message.Subject.Data))
}

func TestAdapter_Send_MalformedDestination(t *testing.T) {
	called := false
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			called = true
			return nil, nil
		},
	}

	a := New(mock, "alerts@beacon.example.org", logger.NewNoOpLogger())
	err := a.Send(context.Background(), "not-an-address", testMessage())

	assert.True(t, errors.IsPermanentDelivery(err))
	assert.False(t, called, "no provider call for a destination that can never work")
}

func TestAdapter_Send_Classification(t *testing.T) {
	tests := []struct {
		name      string
		sendErr   error
		permanent bool
	}{
		{
			name:      "message rejected is permanent",
			sendErr:   &smithy.GenericAPIError{Code: "MessageRejected", Message: "address suppressed", Fault: smithy.FaultClient},
			permanent: true,
		},
		{
			name:      "throttling is transient",
			sendErr:   &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded", Fault: smithy.FaultClient},
			permanent: false,
		},
		{
			name:      "server fault is transient",
			sendErr:   &smithy.GenericAPIError{Code: "InternalFailure", Message: "oops", Fault: smithy.FaultServer},
			permanent: false,
		},
		{
			name:      "unknown client fault is permanent",
			sendErr:   &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope", Fault: smithy.FaultClient},
			permanent: true,
		},
		{
			name:      "network error is transient",
			sendErr:   fmt.Errorf("dial tcp: connection refused"),
			permanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockSESService{
				SendEmailFunc: func(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
					return nil, tt.sendErr
				},
			}

			a := New(mock, "alerts@beacon.example.org", logger.NewNoOpLogger())
			err := a.Send(context.Background(), "alice@example.org", testMessage())

			require.Error(t, err)
			if tt.permanent {
				assert.True(t, errors.IsPermanentDelivery(err))
				assert.False(t, errors.IsTransient(err))
			} else {
				assert.True(t, errors.IsTransient(err))
			}
		})
	}
}
