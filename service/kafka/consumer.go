package kafka

import (
	"context"

	"RProject/logger"
	"RProject/tools/errs"
	"RProject/tools/safe"

	"github.com/Shopify/sarama"
)

// MessageHandler processes one consumed record. Returning an error logs the
// failure; the offset is committed either way so one poison record cannot
// wedge the partition.
type MessageHandler func(ctx context.Context, topic string, value []byte) error

type groupHandler struct {
	handle MessageHandler
}

func (groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handle(sess.Context(), msg.Topic, msg.Value); err != nil {
			logger.Errorf("kafka handler failed: topic=%s partition=%d offset=%d err=%v",
				msg.Topic, msg.Partition, msg.Offset, err)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

// StartConsumerGroup joins the named group and consumes topics until ctx is
// cancelled. It rejoins automatically on rebalance.
func StartConsumerGroup(ctx context.Context, groupID string, topics []string, handle MessageHandler) error {
	if KafkaClient == nil {
		return errs.New("kafka client not initialized")
	}
	group, err := sarama.NewConsumerGroupFromClient(groupID, KafkaClient)
	if err != nil {
		return errs.WrapMsg(err, "kafka consumer group", "group", groupID)
	}
	safe.SafeGo(func() {
		defer func() { _ = group.Close() }()
		for {
			if err := group.Consume(ctx, topics, groupHandler{handle: handle}); err != nil {
				logger.Errorf("kafka consume loop: group=%s err=%v", groupID, err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	})
	return nil
}
