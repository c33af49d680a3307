package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/clinicblog/internal/db"
)

// CommentHub fans comment snapshots out to the watchers of a post.
type CommentHub struct {
	mu sync.RWMutex
	// postID -> subscriberID -> channel
	subs map[string]map[string]chan []db.Comment
}

func NewCommentHub() *CommentHub {
	return &CommentHub{subs: make(map[string]map[string]chan []db.Comment)}
}

// Subscribe registers a watcher. The returned cancel func unregisters it and
// closes the channel.
func (h *CommentHub) Subscribe(postID string) (<-chan []db.Comment, func()) {
	ch := make(chan []db.Comment, 1)
	subID := uuid.NewString()

	h.mu.Lock()
	if h.subs[postID] == nil {
		h.subs[postID] = make(map[string]chan []db.Comment)
	}
	h.subs[postID][subID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if postSubs, ok := h.subs[postID]; ok {
				delete(postSubs, subID)
				if len(postSubs) == 0 {
					delete(h.subs, postID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the latest snapshot. A slow watcher only ever sees the
// newest list: a stale pending snapshot is replaced.
func (h *CommentHub) Publish(postID string, comments []db.Comment) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[postID] {
		deliverLatest(ch, comments)
	}
}

func deliverLatest(ch chan []db.Comment, comments []db.Comment) {
	for {
		select {
		case ch <- comments:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Watchers reports how many subscribers a post has.
func (h *CommentHub) Watchers(postID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[postID])
}

// Watch subscribes to postID and streams the current snapshot followed by
// every published update until ctx is done.
func (h *CommentHub) Watch(ctx context.Context, postID string, snapshot func(context.Context) ([]db.Comment, error)) (<-chan []db.Comment, error) {
	src, cancel := h.Subscribe(postID)
	initial, err := snapshot(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan []db.Comment, 1)
	out <- initial
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case comments, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- comments:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
