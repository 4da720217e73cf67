package app

import (
	"context"
	"math/rand/v2"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-sync/internal/source"
	"github.com/nhle/notification-sync/internal/source/mock"
	appsync "github.com/nhle/notification-sync/internal/sync"
	"github.com/nhle/notification-sync/internal/ui/compose"
)

// resultMsg carries one tick outcome from the subscription.
type resultMsg struct {
	result appsync.TickResult
}

// popupChangedMsg signals that the pop-up queue's state may have changed.
type popupChangedMsg struct{}

// markReadDoneMsg is sent after the backend answered a mark-read request.
type markReadDoneMsg struct {
	id  string
	err error
}

// injectedMsg is sent after a mock notification was stored.
type injectedMsg struct {
	title string
	err   error
}

// waitForResult blocks until the next tick result or until the
// subscription ends. The Update loop re-issues it after every result.
func waitForResult(sub *appsync.Subscription) tea.Cmd {
	return func() tea.Msg {
		select {
		case r := <-sub.Results():
			return resultMsg{result: r}
		case <-sub.Done():
			return nil
		}
	}
}

// waitForPopup blocks until the pop-up queue signals a change.
func waitForPopup(changed <-chan struct{}, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-changed:
			return popupChangedMsg{}
		case <-done:
			return nil
		}
	}
}

// markRead asks the backend to acknowledge id. The list changes only
// once the reply arrives.
func markRead(sub *appsync.Subscription, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), markReadTimeout)
		defer cancel()
		return markReadDoneMsg{id: id, err: sub.MarkRead(ctx, id)}
	}
}

// generate stores a random notification and asks for an immediate tick.
func generate(mb *mock.Backend, sub *appsync.Subscription) tea.Cmd {
	return func() tea.Msg {
		rnd := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		seed, err := mb.Generate(context.Background(), rnd, sub.SubscriberID())
		if err == nil {
			sub.Refresh()
		}
		return injectedMsg{title: seed.Title, err: err}
	}
}

// inject stores a composed notification and asks for an immediate tick.
func inject(mb *mock.Backend, sub *appsync.Subscription, c compose.ComposedMsg) tea.Cmd {
	return func() tea.Msg {
		channels := []int{source.ChannelCodeEmail}
		if c.Push {
			channels = append(channels, source.ChannelCodePush)
		}
		_, err := mb.Insert(context.Background(), mock.Seed{
			SubscriberID: sub.SubscriberID(),
			EventType:    c.EventType,
			Title:        c.Title,
			Message:      c.Message,
			ChannelIDs:   channels,
		})
		if err == nil {
			sub.Refresh()
		}
		return injectedMsg{title: c.Title, err: err}
	}
}
