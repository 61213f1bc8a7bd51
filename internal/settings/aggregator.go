package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/playsync/internal/gateway"
	"github.com/desertthunder/playsync/internal/models"
)

// DefaultSections is the fan-out used when no sections are given.
var DefaultSections = []models.Section{
	models.SectionTheme,
	models.SectionLanguage,
	models.SectionSecurity,
	models.SectionFull,
}

// SectionResult is the outcome of fetching one section.
// Exactly one of Response and Err is set.
type SectionResult struct {
	Section  models.Section
	Response *gateway.Response
	Err      error // the gateway failure, untouched
}

func (r SectionResult) OK() bool { return r.Err == nil }

// Failure returns the gateway failure, if the section failed with one.
func (r SectionResult) Failure() (*gateway.Failure, bool) { return gateway.AsFailure(r.Err) }

// Document decodes a successful result into the section's typed document.
func (r SectionResult) Document() (any, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	switch r.Section {
	case models.SectionTheme:
		return decode[models.ThemeSettings](r.Response)
	case models.SectionLanguage:
		return decode[models.LanguageSettings](r.Response)
	case models.SectionSecurity:
		return decode[models.SecuritySettings](r.Response)
	case models.SectionNotifications:
		return decode[models.NotificationSettings](r.Response)
	case models.SectionPrivacy:
		return decode[models.PrivacySettings](r.Response)
	case models.SectionFull:
		return decode[models.UserSettings](r.Response)
	default:
		return nil, fmt.Errorf("no document type for section %q", r.Section)
	}
}

// Progress is sent once per finished section.
type Progress struct {
	Section models.Section
	Step    int
	Total   int
	Err     error
}

// Aggregator fetches several sections at once.
type Aggregator struct {
	client   *Client
	progress chan<- Progress
}

type AggregatorOption func(*Aggregator)

// WithProgress reports finished sections on ch. Sends never block; updates are dropped when ch is full.
func WithProgress(ch chan<- Progress) AggregatorOption {
	return func(a *Aggregator) { a.progress = ch }
}

func NewAggregator(c *Client, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{client: c}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetAllSections issues one concurrent GET per section and waits for all of them.
// Results are positionally aligned with sections; a failed section never fails the others.
func (a *Aggregator) GetAllSections(ctx context.Context, user models.UserID, sections ...models.Section) []SectionResult {
	if len(sections) == 0 {
		sections = DefaultSections
	}

	results := make([]SectionResult, len(sections))
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for i, section := range sections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.client.Get(ctx, user, section)
			results[i] = SectionResult{Section: section, Response: resp, Err: err}

			mu.Lock()
			done++
			step := done
			mu.Unlock()
			a.sendProgress(Progress{Section: section, Step: step, Total: len(sections), Err: err})
		}()
	}
	wg.Wait()
	return results
}

func (a *Aggregator) sendProgress(p Progress) {
	if a.progress == nil {
		return
	}
	select {
	case a.progress <- p:
	default:
	}
}

// Failed returns the results that carry an error.
func Failed(results []SectionResult) []SectionResult {
	var out []SectionResult
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
