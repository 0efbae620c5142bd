package v4l2

// events.go provides the slice of V4L2 event subscription and handling
// support the decode pipeline actually drives: source-change (resolution),
// end-of-stream, and frame-sync notifications.
//
// Applications subscribe to events using VIDIOC_SUBSCRIBE_EVENT and dequeue
// them using VIDIOC_DQEVENT.
//
// See: https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-subscribe-event.html
// See: https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-dqevent.html

/*
#include <linux/videodev2.h>
#include <string.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// EventType represents the type of V4L2 event
type EventType = uint32

// Event type constants
// See https://elixir.bootlin.com/linux/latest/source/include/uapi/linux/videodev2.h
const (
	EventEOS          EventType = C.V4L2_EVENT_EOS           // End of stream
	EventFrameSync    EventType = C.V4L2_EVENT_FRAME_SYNC    // Frame sync
	EventSourceChange EventType = C.V4L2_EVENT_SOURCE_CHANGE // Source resolution/format changed
)

// EventSubscription represents an event subscription (v4l2_event_subscription).
//
// See https://elixir.bootlin.com/linux/latest/source/include/uapi/linux/videodev2.h
type EventSubscription struct {
	v4l2EventSubscription C.struct_v4l2_event_subscription
}

// NewEventSubscription creates a new event subscription.
func NewEventSubscription(eventType EventType) *EventSubscription {
	es := &EventSubscription{}
	es.v4l2EventSubscription._type = C.__u32(eventType)
	return es
}

// GetType returns the event type.
func (es *EventSubscription) GetType() EventType {
	return EventType(es.v4l2EventSubscription._type)
}

// EventFrameSyncData represents frame sync event data.
type EventFrameSyncData struct {
	FrameSequence uint32 // Frame sequence number
}

// Event represents a V4L2 event (v4l2_event).
//
// See https://elixir.bootlin.com/linux/latest/source/include/uapi/linux/videodev2.h
type Event struct {
	v4l2Event C.struct_v4l2_event
}

// GetType returns the event type.
func (e *Event) GetType() EventType {
	return EventType(e.v4l2Event._type)
}

// GetFrameSyncData returns the frame sync event data (valid if Type is EventFrameSync).
func (e *Event) GetFrameSyncData() EventFrameSyncData {
	fsPtr := (*C.struct_v4l2_event_frame_sync)(unsafe.Pointer(&e.v4l2Event.u[0]))
	return EventFrameSyncData{
		FrameSequence: uint32(fsPtr.frame_sequence),
	}
}

// SubscribeEvent subscribes to an event type.
// See https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-subscribe-event.html
func SubscribeEvent(fd uintptr, sub *EventSubscription) error {
	if err := send(fd, C.VIDIOC_SUBSCRIBE_EVENT, uintptr(unsafe.Pointer(&sub.v4l2EventSubscription))); err != nil {
		return fmt.Errorf("subscribe event: type %d: %w", sub.GetType(), err)
	}
	return nil
}

// DequeueEvent dequeues a pending event.
// See https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/vidioc-dqevent.html
func DequeueEvent(fd uintptr) (*Event, error) {
	event := &Event{}
	if err := send(fd, C.VIDIOC_DQEVENT, uintptr(unsafe.Pointer(&event.v4l2Event))); err != nil {
		return nil, fmt.Errorf("dequeue event: %w", err)
	}
	return event, nil
}
