package socsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"bitbucket.org/grsnucleo/ocupacional_backend/config"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

// PubSubPushEnvelope is the wrapper Google wraps around a pushed message.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func syncTopicName() string {
	topicName := strings.TrimSpace(os.Getenv("SOC_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "soc-sync"
	}
	return topicName
}

// PublishSyncRun enqueues a sync run for the push or pull worker.
func PublishSyncRun(ctx context.Context, runID uint, companyCode int) error {
	topicName := syncTopicName()

	if envBoolDefault("SOC_SYNC_CREATE_TOPIC", false) {
		client, err := config.GetClient(ctx)
		if err != nil {
			return err
		}
		if _, err := config.CreateTopicIfNotExists(client, topicName); err != nil {
			return err
		}
	}

	payload := SyncPubSubPayload{
		RunId:       runID,
		CompanyCode: companyCode,
	}
	_, err := config.PublishJSON(ctx, topicName, payload)
	return err
}

// decodeSyncPayload parses and validates a queued sync run message.
func decodeSyncPayload(data []byte) (SyncPubSubPayload, error) {
	var payload SyncPubSubPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return SyncPubSubPayload{}, err
	}
	if payload.RunId == 0 || payload.CompanyCode == 0 {
		return SyncPubSubPayload{}, errors.New("sync payload missing run id or company code")
	}
	return payload, nil
}

// PubSubPushHandler consumes pushed sync run messages. It always answers 204
// so Pub/Sub never redelivers; the run row itself records failures and the
// retry endpoint requeues them.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_SOC_SYNC_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		payload, err := decodeSyncPayload(envelope.Message.Data)
		if err != nil {
			c.Status(204)
			return
		}

		_ = ProcessSyncRun(c.Request.Context(), payload)
		c.Status(204)
	}
}

// RunPullWorker subscribes to the sync topic and drives runs from pulled
// messages. It is the pull-mode counterpart of PubSubPushHandler for
// deployments without a push endpoint; SOC_SYNC_PULL_SUBSCRIPTION names the
// subscription. Receive runs on its own goroutine until ctx is cancelled.
func RunPullWorker(ctx context.Context) error {
	logger := config.GetLogger()
	subName := strings.TrimSpace(os.Getenv("SOC_SYNC_PULL_SUBSCRIPTION"))
	if subName == "" {
		return errors.New("SOC_SYNC_PULL_SUBSCRIPTION is not set")
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(client, syncTopicName())
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, subName, topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 4

	callback := func(ctx context.Context, msg *pubsub.Message) {
		payload, err := decodeSyncPayload(msg.Data)
		if err != nil {
			config.LogError(logger, moduleName, "RunPullWorker", "dropping malformed sync message", msg.ID, err)
			msg.Ack()
			return
		}
		// Failures land on the run row and finished runs ignore
		// redelivery, so the message is acked either way.
		_ = ProcessSyncRun(ctx, payload)
		msg.Ack()
	}

	go func() {
		if err := sub.Receive(ctx, callback); err != nil {
			config.LogError(logger, moduleName, "RunPullWorker", "pull subscription stopped", subName, err)
		}
	}()
	return nil
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
