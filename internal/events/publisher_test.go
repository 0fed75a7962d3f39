package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hack4impact-upenn/odaap-f25/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatermillPublisher_GoChannelRoundTrip(t *testing.T) {
	logger := discardLogger()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	t.Cleanup(func() { pubSub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "test.events")
	require.NoError(t, err)

	publisher := NewGoChannelPublisher(pubSub, "test.events", logger)
	require.NoError(t, publisher.Publish(ctx, ModulePosted, ModulePostedData{ModuleID: 4, CourseID: 2, Name: "Intro", PostedBy: "t1"}))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, string(ModulePosted), msg.Metadata.Get("event_type"))

		var decoded struct {
			Event
			Data ModulePostedData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, msg.UUID, decoded.ID)
		assert.Equal(t, ModulePosted, decoded.Type)
		assert.Equal(t, EventSource, decoded.Source)
		assert.Equal(t, uint(4), decoded.Data.ModuleID)
		assert.Equal(t, "t1", decoded.Data.PostedBy)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestNewPublisher_FallsBackToGoChannel(t *testing.T) {
	publisher, err := NewPublisher(config.KafkaConfig{Topic: "odaap.events"}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { publisher.Close() })

	wp, ok := publisher.(*WatermillPublisher)
	require.True(t, ok)
	assert.Equal(t, "odaap.events", wp.topic)

	// No subscribers: the message is dropped without error
	assert.NoError(t, publisher.Publish(context.Background(), GradeRecorded, GradeRecordedData{QuestionID: 1}))
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(nil)
	ctx := context.Background()

	require.NoError(t, mock.Publish(ctx, SubmissionCreated, SubmissionCreatedData{SubmissionID: 1}))
	require.NoError(t, mock.Publish(ctx, GradeRecorded, GradeRecordedData{QuestionID: 2}))

	assert.Len(t, mock.GetPublishedEvents(), 2)
	graded := mock.EventsOfType(GradeRecorded)
	require.Len(t, graded, 1)
	assert.Equal(t, uint(2), graded[0].Data.(GradeRecordedData).QuestionID)

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())

	mock.Err = errors.New("broker down")
	assert.Error(t, mock.Publish(ctx, ModulePosted, nil))
	assert.Empty(t, mock.GetPublishedEvents())
}
