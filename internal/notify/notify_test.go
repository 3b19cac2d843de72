package notify_test

import (
	"testing"

	"saldokonter/backend/internal/notify"
	mock_notify "saldokonter/backend/internal/notify/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func TestMultiFansOutToEveryNotifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := mock_notify.NewMockNotifier(ctrl)
	second := mock_notify.NewMockNotifier(ctrl)
	first.EXPECT().Notify(notify.Warning, "Stock", "low")
	second.EXPECT().Notify(notify.Warning, "Stock", "low")

	notify.Multi{first, nil, second}.Notify(notify.Warning, "Stock", "low")
}

func TestFeedNotifierPublishesToAllRoom(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := mock_notify.NewMockPublisher(ctrl)
	publisher.EXPECT().
		Publish(notify.Table, "", gomock.Any()).
		Do(func(_ string, _ string, payload any) {
			n, ok := payload.(notify.Notification)
			assert.True(t, ok)
			assert.Equal(t, notify.Error, n.Kind)
			assert.Equal(t, "Close failed", n.Title)
			assert.False(t, n.At.IsZero())
		})

	notify.NewFeedNotifier(publisher).Notify(notify.Error, "Close failed", "please retry")
}

func TestNilFeedNotifierIsSafe(t *testing.T) {
	var n *notify.FeedNotifier
	n.Notify(notify.Success, "ok", "ok")
}
