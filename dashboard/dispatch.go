package dashboard

import "context"

// DispatchError is shown to the user as a blocking alert.
type DispatchError struct {
	Reason string
}

func (e *DispatchError) Error() string {
	return "Failed to send email: " + e.Reason
}

// SendEmail sends one approved e-mail. On success every subscription and
// e-mail whose merchant equals e.Merchant exactly is marked sent. Merchant
// names are compared case-sensitively.
func (d *Dashboard) SendEmail(ctx context.Context, e Email) error {
	reply, err := d.api.SendEmail(ctx, e.To, e.Subject, e.Body, e.Merchant)
	if err != nil {
		return &DispatchError{Reason: reason(err)}
	}
	if reply == nil || !reply.Success {
		msg := ""
		if reply != nil {
			msg = reply.Error
		}
		if msg == "" {
			msg = "unknown error"
		}
		return &DispatchError{Reason: msg}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.state.Subscriptions {
		if d.state.Subscriptions[i].Name == e.Merchant {
			d.state.Subscriptions[i].EmailSent = true
		}
	}
	for i := range d.state.Emails {
		if d.state.Emails[i].Merchant == e.Merchant {
			d.state.Emails[i].EmailSent = true
		}
	}

	d.log.Info().Str("merchant", e.Merchant).Msg("Email sent")
	return nil
}
