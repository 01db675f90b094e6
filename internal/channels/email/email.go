// internal/channels/email/email.go
package email

import (
	"context"
	stderrors "errors"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"

	"bushfire-beacon/internal/channels"
	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/common/validation"
	"bushfire-beacon/internal/models"
)

// SESAPI is the slice of the SES client the adapter needs.
type SESAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Adapter sends alert emails through SES.
type Adapter struct {
	ses       SESAPI
	fromEmail string
	logger    logger.Logger
}

func New(sesClient SESAPI, fromEmail string, log logger.Logger) *Adapter {
	return &Adapter{
		ses:       sesClient,
		fromEmail: fromEmail,
		logger:    log,
	}
}

func (a *Adapter) Channel() string {
	return models.ChannelEmail
}

func (a *Adapter) Send(ctx context.Context, destination string, msg channels.Message) error {
	if !validation.ValidateEmail(destination) {
		return errors.NewPermanentDeliveryError(models.ChannelEmail, stderrors.New("malformed email address"))
	}

	input := &ses.SendEmailInput{
		Source: awssdk.String(a.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{destination},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    awssdk.String(msg.Subject),
				Charset: awssdk.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    awssdk.String(msg.Body),
					Charset: awssdk.String("UTF-8"),
				},
			},
		},
	}

	output, err := a.ses.SendEmail(ctx, input)
	if err != nil {
		a.logger.Warn("ses send failed", map[string]interface{}{
			"destination": destination,
			"error":       err.Error(),
		})
		return classify(err)
	}

	a.logger.Debug("email sent", map[string]interface{}{
		"destination": destination,
		"message_id":  awssdk.ToString(output.MessageId),
	})
	return nil
}

// classify maps an SES failure onto the transient/permanent split. Provider
// rejections are permanent; throttling, 5xx and network faults are transient.
func classify(err error) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "MessageRejected", "InvalidParameterValue", "MailFromDomainNotVerifiedException", "AccountSendingPausedException":
			return errors.NewPermanentDeliveryError(models.ChannelEmail, err)
		case "Throttling", "ThrottlingException", "TooManyRequestsException", "LimitExceededException":
			return errors.NewTransientDeliveryError(models.ChannelEmail, err)
		}
		if apiErr.ErrorFault() == smithy.FaultClient {
			return errors.NewPermanentDeliveryError(models.ChannelEmail, err)
		}
	}
	// Server faults, timeouts and connection errors are worth retrying.
	return errors.NewTransientDeliveryError(models.ChannelEmail, err)
}
