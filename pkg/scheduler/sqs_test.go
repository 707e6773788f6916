package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/recurring-payments/pkg/models"
	"github.com/chris/recurring-payments/pkg/scheduler"
	"github.com/chris/recurring-payments/pkg/scheduler/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSchedulePayment(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.SQSAPI)
		s := scheduler.NewSQSScheduler(mockClient, "https://sqs.local/queue")

		mockClient.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			return *in.QueueUrl == "https://sqs.local/queue" &&
				*in.MessageBody == `{"payment_address":"payment","next_transfer_at":1060}` &&
				in.DelaySeconds == 90
		})).Return(&sqs.SendMessageOutput{}, nil).Once()

		err := s.SchedulePayment(context.Background(), scheduler.Message{PaymentAddress: "payment", NextTransferAt: 1060}, 90*time.Second)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Clamps Delay", func(t *testing.T) {
		mockClient := new(mocks.SQSAPI)
		s := scheduler.NewSQSScheduler(mockClient, "queue")

		mockClient.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			return in.DelaySeconds == 900
		})).Return(&sqs.SendMessageOutput{}, nil).Once()
		mockClient.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			return in.DelaySeconds == 0
		})).Return(&sqs.SendMessageOutput{}, nil).Once()

		assert.NoError(t, s.SchedulePayment(context.Background(), scheduler.Message{PaymentAddress: "payment"}, 24*time.Hour))
		assert.NoError(t, s.SchedulePayment(context.Background(), scheduler.Message{PaymentAddress: "payment"}, -time.Minute))
		mockClient.AssertExpectations(t)
	})

	t.Run("Send Fails", func(t *testing.T) {
		mockClient := new(mocks.SQSAPI)
		s := scheduler.NewSQSScheduler(mockClient, "queue")

		mockClient.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()

		err := s.SchedulePayment(context.Background(), scheduler.Message{PaymentAddress: "payment"}, 0)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send message to SQS")
		mockClient.AssertExpectations(t)
	})
}

func TestFor(t *testing.T) {
	p := &models.Payment{Address: "payment", NextTransferAt: 1060}

	assert.Equal(t, scheduler.Message{PaymentAddress: "payment", NextTransferAt: 1060}, scheduler.For(p))
}
