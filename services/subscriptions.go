package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/models"
	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/shopspring/decimal"
)

const (
	detectionSampleSize = 40
	defaultEmailSubject = "Subscription Discount Request"
	contactNotFound     = "Not found"
)

// Merchants that match are never treated as subscriptions.
var excludedMerchantWords = []string{"RENT", "CREDIT CARD", "TRANSFER", "PAYMENT"}

// Well-known providers skip the contact search.
var knownProviderEmails = []struct {
	Key   string
	Email string
}{
	{"NETFLIX", "help@netflix.com"},
	{"SPOTIFY", "support@spotify.com"},
	{"AMAZON", "customer-service@amazon.com"},
	{"APPLE", "support@apple.com"},
	{"DISNEY", "help@disneyplus.com"},
}

// Searcher is satisfied by *WebSearcher.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

type SubscriptionFinder struct {
	llm    LLM
	search Searcher
}

func NewSubscriptionFinder(llm LLM, search Searcher) *SubscriptionFinder {
	return &SubscriptionFinder{llm: llm, search: search}
}

type alternative struct {
	Company   string `json:"company"`
	Price     string `json:"price"`
	PriceNote string `json:"price_note"`
}

type contactLookup struct {
	Email      string `json:"email"`
	Confidence string `json:"confidence"`
	ContactURL string `json:"contact_url"`
	Reasoning  string `json:"reasoning"`
}

// Find detects recurring charges and prepares a negotiation email for each.
func (f *SubscriptionFinder) Find(ctx context.Context, txs []models.Transaction) ([]models.Subscription, error) {
	subs, err := f.Detect(ctx, txs)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		f.enrich(ctx, &subs[i])
	}
	return subs, nil
}

// Detect asks the model which of the newest transactions recur. Output the
// model garbles yields no subscriptions rather than an error.
func (f *SubscriptionFinder) Detect(ctx context.Context, txs []models.Transaction) ([]models.Subscription, error) {
	log := logger.FromContext(ctx)

	sample := txs
	if len(sample) > detectionSampleSize {
		sample = sample[:detectionSampleSize]
	}

	type promptTx struct {
		Description  string  `json:"description"`
		MerchantName string  `json:"merchant_name,omitempty"`
		Amount       float64 `json:"amount"`
		Date         string  `json:"date"`
	}
	rows := make([]promptTx, 0, len(sample))
	for _, t := range sample {
		rows = append(rows, promptTx{Description: t.Name, MerchantName: t.MerchantName, Amount: t.Amount, Date: t.Date})
	}
	txJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`You are a financial assistant.
Identify ONLY recurring subscriptions from the following transactions.
Recurring subscriptions are payments that occur regularly for the same merchant, usually the same amount, weekly or monthly.
Transactions:
%s
Return strictly JSON:
{"subscriptions": [{"merchant": "Merchant Name", "amount": 123.45, "frequency": "monthly", "last_payment_date": "YYYY-MM-DD"}]}
Rent payments do not count as subscriptions.`, txJSON)

	content, err := f.llm.Complete(ctx, "", prompt, 0.1)
	if err != nil {
		return nil, fmt.Errorf("subscription detection: %w", err)
	}

	var parsed struct {
		Subscriptions []struct {
			Merchant        string  `json:"merchant"`
			Amount          float64 `json:"amount"`
			Frequency       string  `json:"frequency"`
			LastPaymentDate string  `json:"last_payment_date"`
		} `json:"subscriptions"`
	}
	if err := json.Unmarshal([]byte(utils.CleanModelJSON(content)), &parsed); err != nil {
		log.Warn().Err(err).Msg("Could not parse subscription detection output")
		return []models.Subscription{}, nil
	}

	subs := []models.Subscription{}
	for _, s := range parsed.Subscriptions {
		if s.Merchant == "" || isExcludedMerchant(s.Merchant) {
			continue
		}
		subs = append(subs, models.Subscription{
			Merchant:        s.Merchant,
			Amount:          s.Amount,
			Frequency:       s.Frequency,
			LastPaymentDate: s.LastPaymentDate,
		})
	}
	log.Info().Int("count", len(subs)).Msg("Detected subscriptions")
	return subs, nil
}

func isExcludedMerchant(merchant string) bool {
	upper := strings.ToUpper(merchant)
	for _, word := range excludedMerchantWords {
		if strings.Contains(upper, word) {
			return true
		}
	}
	return false
}

func (f *SubscriptionFinder) enrich(ctx context.Context, sub *models.Subscription) {
	log := logger.FromContext(ctx)

	alternatives := f.findAlternatives(ctx, sub.Merchant)
	sub.FoundAlternatives = []string{}
	for _, a := range alternatives {
		sub.FoundAlternatives = append(sub.FoundAlternatives, a.Company)
	}

	body, err := f.negotiationEmail(ctx, sub, alternatives)
	if err != nil {
		log.Warn().Err(err).
			Str("merchant", sub.Merchant).
			Str("amount", utils.MaskAmount(sub.Amount)).
			Msg("Negotiation email generation failed")
	}
	sub.NegotiationEmail = body

	contact := f.findContact(ctx, sub.Merchant)
	sub.EmailSent = false
	if contact.Email == "" || strings.EqualFold(contact.Email, "not found") {
		sub.ContactEmail = contact.ContactURL
		if sub.ContactEmail == "" || strings.EqualFold(sub.ContactEmail, "not found") {
			sub.ContactEmail = contactNotFound
		}
		sub.EmailStatus = "No email found - " + contact.Reasoning
		return
	}
	sub.ContactEmail = contact.Email
	sub.EmailSubject = defaultEmailSubject
	sub.EmailStatus = fmt.Sprintf("Email ready to send with %s confidence - %s", contact.Confidence, contact.Reasoning)
}

func (f *SubscriptionFinder) findAlternatives(ctx context.Context, merchant string) []alternative {
	if f.search == nil {
		return nil
	}
	query := merchant + " alternatives competitors similar services pricing"
	results, err := f.search.Search(ctx, query)
	if err != nil || len(results) == 0 {
		return nil
	}
	if len(results) > 6 {
		results = results[:6]
	}

	system := `You are an expert at analyzing search results to find alternative companies/services and their pricing.
Return ONLY actual company or brand names with their prices, at most 3, as JSON:
[{"company": "Company Name", "price": "$9.99/month", "price_note": "Basic plan"}]
If no price is found for a company use "Price not found". If no clear alternatives are found, return [].`
	user := fmt.Sprintf("Original search query: %q\n\nSearch results:\n%s", query, formatSearchResults(results, false))

	content, err := f.llm.Complete(ctx, system, user, 0.1)
	if err != nil {
		return nil
	}

	var parsed []alternative
	if err := json.Unmarshal([]byte(utils.CleanModelJSON(content)), &parsed); err != nil {
		return nil
	}

	var out []alternative
	for _, a := range parsed {
		company := strings.TrimSpace(a.Company)
		if len(company) < 2 || len(company) >= 50 || isListicleWord(company) {
			continue
		}
		if a.Price == "" {
			a.Price = "Price not found"
		}
		a.Company = company
		out = append(out, a)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func isListicleWord(company string) bool {
	lower := strings.ToLower(company)
	for _, w := range []string{"alternative", "best", "top", "list", "review", "comparison", "vs", "versus"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (f *SubscriptionFinder) negotiationEmail(ctx context.Context, sub *models.Subscription, alternatives []alternative) (string, error) {
	alts := "None found"
	if len(alternatives) > 0 {
		parts := make([]string, 0, len(alternatives))
		for _, a := range alternatives {
			parts = append(parts, fmt.Sprintf("%s (%s)", a.Company, a.Price))
		}
		alts = strings.Join(parts, ", ")
	}

	prompt := fmt.Sprintf(`Write a professional yet friendly email requesting a discount on a subscription.

Subscription Details:
- Company: %s
- Current Amount: $%.2f
- Frequency: %s

Available Alternatives with Pricing: %s

Requirements:
1. 60-90 words, 3-5 sentences
2. Mention being a loyal customer and budget consciousness
3. Mention the alternatives when available, without being aggressive
4. Start with "Hi %s team,"
5. End with just "Thanks" (no name signature)
6. Ask for a discount or promotional rate

Output only the email body text, no subject line or additional formatting.`, sub.Merchant, sub.Amount, sub.Frequency, alts, sub.Merchant)

	body, err := f.llm.Complete(ctx, "", prompt, 0.1)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

func (f *SubscriptionFinder) findContact(ctx context.Context, merchant string) contactLookup {
	upper := strings.ToUpper(merchant)
	for _, p := range knownProviderEmails {
		if strings.Contains(upper, p.Key) {
			return contactLookup{Email: p.Email, Confidence: "high", Reasoning: "Known provider support address"}
		}
	}

	notFound := contactLookup{Email: "not found", Confidence: "none", ContactURL: "not found", Reasoning: "No contact information found in search results"}
	if f.search == nil {
		return notFound
	}
	results, err := f.search.Search(ctx, merchant+" contact email OR support email")
	if err != nil || len(results) == 0 {
		return notFound
	}
	if len(results) > 5 {
		results = results[:5]
	}

	system := fmt.Sprintf(`You are an expert at finding customer support contact information for companies.
Find the best customer support email address for %s from the search results.
Prefer support@, help@, contact@ or customerservice@ addresses and avoid noreply@ or marketing@ ones.
Return JSON: {"email": "support@company.com", "confidence": "high|medium|low", "contact_url": "https://company.com/contact", "reasoning": "short explanation"}
If nothing is found use "not found" for email and contact_url.`, merchant)
	user := fmt.Sprintf("Company: %s\n\nSearch results:\n%s", merchant, formatSearchResults(results, true))

	content, err := f.llm.Complete(ctx, system, user, 0.1)
	if err != nil {
		return notFound
	}
	var found contactLookup
	if err := json.Unmarshal([]byte(utils.CleanModelJSON(content)), &found); err != nil {
		return notFound
	}
	if found.Confidence == "" {
		found.Confidence = "low"
	}
	return found
}

func formatSearchResults(results []SearchResult, withLinks bool) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "\n--- Search Result %d ---\nTitle: %s\nSnippet: %s\n", i+1, r.Title, r.Snippet)
		if withLinks {
			fmt.Fprintf(&b, "Link: %s\n", r.Link)
		}
	}
	return b.String()
}

// MonthlyCost sums the subscriptions billed monthly.
func MonthlyCost(subs []models.Subscription) float64 {
	total := decimal.Zero
	for _, s := range subs {
		if strings.EqualFold(s.Frequency, "monthly") {
			total = total.Add(decimal.NewFromFloat(s.Amount))
		}
	}
	return cents(total)
}

// CarryEmailSent copies the persisted sent flag onto freshly detected
// subscriptions, matching merchants exactly.
func CarryEmailSent(detected, stored []models.Subscription) {
	sent := make(map[string]bool, len(stored))
	for _, s := range stored {
		if s.EmailSent {
			sent[s.Merchant] = true
		}
	}
	for i := range detected {
		if sent[detected[i].Merchant] {
			detected[i].EmailSent = true
		}
	}
}

// ApprovalEmails lists the drafts that have a deliverable address.
func ApprovalEmails(subs []models.Subscription) []models.Email {
	emails := []models.Email{}
	for _, s := range subs {
		if !strings.Contains(s.ContactEmail, "@") {
			continue
		}
		subject := s.EmailSubject
		if subject == "" {
			subject = defaultEmailSubject
		}
		emails = append(emails, models.Email{
			Merchant:  s.Merchant,
			To:        s.ContactEmail,
			Subject:   subject,
			Body:      s.NegotiationEmail,
			EmailSent: s.EmailSent,
		})
	}
	return emails
}
