package dashboard

const DefaultEmailSubject = "Subscription Discount Request"

// DeriveEmails builds the approval list from subscriptions when the backend
// did not send one.
func DeriveEmails(subs []Subscription) []Email {
	emails := []Email{}
	for _, s := range subs {
		if s.NegotiationEmail == "" && s.ContactEmail == "" {
			continue
		}
		subject := s.EmailSubject
		if subject == "" {
			subject = DefaultEmailSubject
		}
		emails = append(emails, Email{
			To:        s.ContactEmail,
			Subject:   subject,
			Body:      s.NegotiationEmail,
			EmailSent: s.EmailSent,
			Merchant:  s.Name,
		})
	}
	return emails
}
