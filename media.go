package avatarstream

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/avatarstream/client-sdk-go/participant"
	"github.com/avatarstream/client-sdk-go/transport"
)

// PublishAudio publishes a local audio track into the session. The
// local participant is registered on the first successful publish.
func (c *Client) PublishAudio(ctx context.Context, track *transport.LocalTrack) error {
	return c.publish(ctx, track, transport.TrackKindAudio)
}

// PublishVideo publishes a local video track into the session.
func (c *Client) PublishVideo(ctx context.Context, track *transport.LocalTrack) error {
	return c.publish(ctx, track, transport.TrackKindVideo)
}

// UnpublishAudio removes the published audio track.
func (c *Client) UnpublishAudio(ctx context.Context) error {
	return c.unpublish(ctx, transport.TrackKindAudio)
}

// UnpublishVideo removes the published video track.
func (c *Client) UnpublishVideo(ctx context.Context) error {
	return c.unpublish(ctx, transport.TrackKindVideo)
}

func (c *Client) publish(ctx context.Context, track *transport.LocalTrack, kind transport.TrackKind) error {
	if track == nil {
		return fmt.Errorf("%w: nil track", ErrTrackNotFound)
	}
	if track.Kind() != kind {
		return fmt.Errorf("%w: %s track passed to %s publish", ErrMediaDevice, track.Kind(), kind)
	}

	c.mu.Lock()
	joined := c.state == StateConnected || c.state == StateReconnecting
	c.mu.Unlock()
	if !joined {
		return fmt.Errorf("%w: publish requires an established session", ErrConnectionFailed)
	}

	id, err := c.transport.PublishTrack(ctx, track)
	if err != nil {
		return mapPublishError(err)
	}

	c.updateState(func() {
		if kind == transport.TrackKindAudio {
			c.audioTrack = id
		} else {
			c.videoTrack = id
		}
		localID := c.ensureLocal()
		c.registry.UpsertTrack(localID, participant.Track{
			ID:      id,
			Kind:    mapTrackKind(kind),
			Source:  track.Name(),
			Enabled: true,
		})
	})

	logrus.WithFields(logrus.Fields{
		"function": "publish",
		"track_id": id,
		"kind":     kind.String(),
	}).Info("Local track published")
	return nil
}

func (c *Client) unpublish(ctx context.Context, kind transport.TrackKind) error {
	c.mu.Lock()
	id := c.audioTrack
	if kind == transport.TrackKindVideo {
		id = c.videoTrack
	}
	c.mu.Unlock()
	if id == "" {
		return fmt.Errorf("%w: no %s track published", ErrTrackNotFound, kind)
	}

	if err := c.transport.UnpublishTrack(ctx, id); err != nil {
		return mapPublishError(err)
	}

	c.updateState(func() {
		if kind == transport.TrackKindAudio {
			c.audioTrack = ""
		} else {
			c.videoTrack = ""
		}
		if p, ok := c.registry.Local(); ok {
			c.registry.RemoveTrack(p.ID, id)
		}
	})

	logrus.WithFields(logrus.Fields{
		"function": "unpublish",
		"track_id": id,
		"kind":     kind.String(),
	}).Info("Local track unpublished")
	return nil
}

// ensureLocal registers the local participant if it is not present yet
// and returns its id. The identity comes from the transport, with a
// fixed fallback for adapters that do not expose one.
func (c *Client) ensureLocal() string {
	if p, ok := c.registry.Local(); ok {
		return p.ID
	}
	info, ok := c.transport.LocalParticipant()
	if !ok || info.ID == "" {
		info = transport.ParticipantInfo{ID: "local"}
	}
	c.registry.SetLocal(participant.Participant{ID: info.ID, DisplayName: info.DisplayName})
	return info.ID
}
