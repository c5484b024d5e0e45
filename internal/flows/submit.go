package flows

import (
	"context"
	"time"

	"github.com/wolfman30/vocal-vent/internal/chat"
	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/notify"
	"github.com/wolfman30/vocal-vent/internal/validation"
	"github.com/wolfman30/vocal-vent/internal/wizard"
)

// PlatformInApp is the chat platform served by the site's own chat rooms.
const PlatformInApp = "inapp"

// Receipt is what a successful submission returns to the visitor.
type Receipt struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	RoomID     string `json:"roomId,omitempty"`
}

var collections = map[wizard.Flow]string{
	wizard.FlowBooking:   gateway.CollectionBookings,
	wizard.FlowChat:      gateway.CollectionChatSessions,
	wizard.FlowCorporate: gateway.CollectionCorporateInquiries,
}

var confirmations = map[wizard.Flow]struct{ title, message string }{
	wizard.FlowBooking:   {"Booking received", "Your call has been booked. We will confirm it shortly."},
	wizard.FlowChat:      {"Chat session started", "Your chat session is ready."},
	wizard.FlowCorporate: {"Inquiry received", "Thank you. Our team will contact you soon."},
}

// Submit packages the flow's selection and form into one record. The flow
// must be on its last step. Only the returned id is used from the backend;
// on success the wizard and its form start over.
func (c *Controller) Submit(ctx context.Context, flow wizard.Flow) (Receipt, error) {
	m, err := c.machine(flow)
	if err != nil {
		return Receipt{}, err
	}
	if !m.AtEnd() {
		return Receipt{}, ErrIncomplete
	}
	collection := collections[flow]
	data, err := c.payload(flow)
	if err != nil {
		return Receipt{}, err
	}

	id, err := c.reg.backend.Create(ctx, collection, data)
	if c.reg.metrics != nil {
		c.reg.metrics.ObserveSubmission(collection, err)
	}
	if err != nil {
		c.reg.logger.Error("flows: submission failed", "visitor_id", c.visitorID, "collection", collection, "error", err)
		return Receipt{}, err
	}
	receipt := Receipt{ID: id, Collection: collection}
	if flow == wizard.FlowChat {
		receipt.RoomID = c.openRoom(ctx, id)
		if receipt.RoomID != "" {
			data["roomId"] = receipt.RoomID
		}
	}
	c.reg.logger.Info("flows: submission stored", "visitor_id", c.visitorID, "collection", collection, "id", id)

	if c.reg.notifier != nil {
		if err := c.reg.notifier.NotifySubmission(ctx, notify.Submission{
			Collection: collection,
			ID:         id,
			Fields:     stringFields(data),
		}); err != nil {
			c.reg.logger.Warn("flows: operator notification failed", "id", id, "error", err)
		}
	}

	conf := confirmations[flow]
	c.state.Notifications.Add(conf.title, conf.message, c.reg.now())
	c.clear(flow)
	m.Reset()
	_ = c.persist(ctx)
	return receipt, nil
}

// openRoom opens the live room of a stored in-app chat session and links
// the two. The session stays valid without a room; the visitor can open one
// from the chat page.
func (c *Controller) openRoom(ctx context.Context, sessionID string) string {
	ch := c.state.CurrentChat
	if ch == nil || ch.Platform != PlatformInApp || c.reg.rooms == nil {
		return ""
	}
	roomID, err := c.reg.rooms.CreateRoom(ctx, chat.Participant{VisitorID: c.visitorID, Platform: ch.Platform})
	if err != nil {
		c.reg.logger.Error("flows: open chat room failed", "visitor_id", c.visitorID, "session_id", sessionID, "error", err)
		return ""
	}
	if err := c.reg.backend.Update(ctx, gateway.CollectionChatSessions, sessionID, map[string]any{"roomId": roomID}); err != nil {
		c.reg.logger.Warn("flows: linking chat room failed", "session_id", sessionID, "room_id", roomID, "error", err)
	}
	return roomID
}

func (c *Controller) payload(flow wizard.Flow) (map[string]any, error) {
	now := c.reg.now().UTC().Format(time.RFC3339Nano)
	data := map[string]any{"visitorId": c.visitorID, "createdAt": now}
	form := c.forms[flow]

	switch flow {
	case wizard.FlowBooking:
		b := c.state.CurrentBooking
		if b == nil {
			return nil, missing("packageId")
		}
		data["packageId"] = b.PackageID
		data["price"] = b.Price
		data["date"] = form[FieldDate]
		data["time"] = form[FieldTime]
		if form[FieldNotes] != "" {
			data["notes"] = form[FieldNotes]
		}
		data["status"] = gateway.StatusPending
		data["userId"] = "anonymous"

	case wizard.FlowChat:
		ch := c.state.CurrentChat
		if ch == nil || ch.Duration == "" {
			return nil, missing("duration")
		}
		data["platform"] = ch.Platform
		data["duration"] = ch.Duration
		data["price"] = ch.Price
		data["status"] = gateway.StatusActive

	case wizard.FlowCorporate:
		for _, f := range []string{FieldCompanyName, FieldEmployeeCount, FieldIndustry, FieldContactName, FieldEmail, FieldPhone, FieldMessage} {
			if v := form[f]; v != "" {
				data[f] = v
			}
		}
		if email, err := validation.NormalizeEmail(form[FieldEmail]); err == nil {
			data[FieldEmail] = email
		}
		data["status"] = gateway.StatusPending
	}
	return data, nil
}

// clear drops the selection and form of a finished flow.
func (c *Controller) clear(flow wizard.Flow) {
	delete(c.forms, flow)
	delete(c.errors, flow)
	switch flow {
	case wizard.FlowBooking:
		c.state.CurrentBooking = nil
	case wizard.FlowChat:
		c.state.CurrentChat = nil
	}
}

func stringFields(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok && s != "" {
			out[k] = s
		}
	}
	return out
}
