// internal/channels/sms/sms.go
package sms

import (
	"context"
	stderrors "errors"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"

	"bushfire-beacon/internal/channels"
	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/common/validation"
	"bushfire-beacon/internal/models"
)

// SNSAPI is the slice of the SNS client the adapter needs.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Adapter sends alert texts through SNS direct-to-phone publish.
type Adapter struct {
	sns      SNSAPI
	senderID string
	logger   logger.Logger
}

func New(snsClient SNSAPI, senderID string, log logger.Logger) *Adapter {
	return &Adapter{
		sns:      snsClient,
		senderID: senderID,
		logger:   log,
	}
}

func (a *Adapter) Channel() string {
	return models.ChannelSMS
}

func (a *Adapter) Send(ctx context.Context, destination string, msg channels.Message) error {
	if !validation.ValidatePhone(destination) {
		return errors.NewPermanentDeliveryError(models.ChannelSMS, stderrors.New("malformed phone number"))
	}

	input := &sns.PublishInput{
		PhoneNumber: awssdk.String(destination),
		Message:     awssdk.String(msg.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String("Transactional"),
			},
		},
	}
	if a.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    awssdk.String("String"),
			StringValue: awssdk.String(a.senderID),
		}
	}

	output, err := a.sns.Publish(ctx, input)
	if err != nil {
		a.logger.Warn("sns publish failed", map[string]interface{}{
			"destination": destination,
			"error":       err.Error(),
		})
		return classify(err)
	}

	a.logger.Debug("sms sent", map[string]interface{}{
		"destination": destination,
		"message_id":  awssdk.ToString(output.MessageId),
	})
	return nil
}

// classify maps an SNS failure onto the transient/permanent split.
func classify(err error) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidParameter", "InvalidParameterValue", "ValidationError", "OptedOut":
			return errors.NewPermanentDeliveryError(models.ChannelSMS, err)
		case "Throttling", "ThrottledException", "InternalError", "ServiceUnavailable":
			return errors.NewTransientDeliveryError(models.ChannelSMS, err)
		}
		if apiErr.ErrorFault() == smithy.FaultClient {
			return errors.NewPermanentDeliveryError(models.ChannelSMS, err)
		}
	}
	return errors.NewTransientDeliveryError(models.ChannelSMS, err)
}
