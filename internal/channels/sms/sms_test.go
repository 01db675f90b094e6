// internal/channels/sms/sms_test.go
package sms

import (
	"context"
	"fmt"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bushfire-beacon/internal/channels"
	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
)

type MockSNSService struct {
	PublishFunc func(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, input, optFns...)
}

func testMessage() channels.Message {
	return channels.Message{Body: "HIGH ALERT: fire reported in R1."}
}

func TestAdapter_Send_Success(t *testing.T) {
	var captured *sns.PublishInput
	mock := &MockSNSService{
		PublishFunc: func(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = input
			return &sns.PublishOutput{MessageId: awssdk.String("msg-456")}, nil
		},
	}

	a := New(mock, "BEACON", logger.NewTestLogger(t))
	err := a.Send(context.Background(), "+61400000001", testMessage())

	assert.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "+61400000001", awssdk.ToString(captured.PhoneNumber))
	assert.Equal(t, "HIGH ALERT: fire reported in R1.", awssdk.ToString(captured.Message))
	assert.Equal(t, "Transactional", awssdk.ToString(captured.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
	assert.Equal(t, "BEACON", awssdk.ToString(captured.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}

func TestAdapter_Send_NoSenderID(t *testing.T) {
	var captured *sns.PublishInput
	mock := &MockSNSService{
		PublishFunc: func(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = input
			return &sns.PublishOutput{MessageId: awssdk.String("msg-789")}, nil
		},
	}

	a := New(mock, "", logger.NewNoOpLogger())
	err := a.Send(context.Background(), "+61400000001", testMessage())

	assert.NoError(t, err)
	require.NotNil(t, captured)
	_, hasSenderID := captured.MessageAttributes["AWS.SNS.SMS.SenderID"]
	assert.False(t, hasSenderID)
}

func TestAdapter_Send_MalformedDestination(t *testing.T) {
	called := false
	mock := &MockSNSService{
		PublishFunc: func(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			called = true
			return nil, nil
		},
	}

	a := New(mock, "BEACON", logger.NewNoOpLogger())
	err := a.Send(context.Background(), "12", testMessage())

	assert.True(t, errors.IsPermanentDelivery(err))
	assert.False(t, called)
}

func TestAdapter_Send_Classification(t *testing.T) {
	tests := []struct {
		name      string
		sendErr   error
		permanent bool
	}{
		{
			name:      "opted out is permanent",
			sendErr:   &smithy.GenericAPIError{Code: "OptedOut", Message: "recipient opted out", Fault: smithy.FaultClient},
			permanent: true,
		},
		{
			name:      "invalid parameter is permanent",
			sendErr:   &smithy.GenericAPIError{Code: "InvalidParameter", Message: "bad number", Fault: smithy.FaultClient},
			permanent: true,
		},
		{
			name:      "throttled is transient",
			sendErr:   &smithy.GenericAPIError{Code: "ThrottledException", Message: "slow down", Fault: smithy.FaultClient},
			permanent: false,
		},
		{
			name:      "server fault is transient",
			sendErr:   &smithy.GenericAPIError{Code: "InternalError", Message: "oops", Fault: smithy.FaultServer},
			permanent: false,
		},
		{
			name:      "network error is transient",
			sendErr:   fmt.Errorf("i/o timeout"),
			permanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockSNSService{
				PublishFunc: func(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
					return nil, tt.sendErr
				},
			}

			a := New(mock, "BEACON", logger.NewNoOpLogger())
			err := a.Send(context.Background(), "+61400000001", testMessage())

			require.Error(t, err)
			if tt.permanent {
				assert.True(t, errors.IsPermanentDelivery(err))
			} else {
				assert.True(t, errors.IsTransient(err))
			}
		})
	}
}
