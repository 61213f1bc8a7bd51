// package settings talks to the advanced settings proxy.
//
// The proxy is keyed by user id in the path and takes no credential. Sections follow one
// shape: GET/PUT/DELETE for theme, language and security; PUT only for notifications and
// privacy; GET/PUT on the full document plus the bulk import, export and reset endpoints.
package settings

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/gateway"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

const BasePath = "/settings/advanced"

// Doer is the part of [gateway.Gateway] the client needs.
type Doer interface {
	Do(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Client wraps each proxy endpoint.
type Client struct {
	doer   Doer
	logger *log.Logger
}

type ClientOption func(*Client)

func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(d Doer, opts ...ClientOption) *Client {
	c := &Client{doer: d, logger: shared.NopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path builds the proxy path for user, optionally followed by a section or bulk action.
func Path(user models.UserID, suffix ...string) string {
	p := BasePath + "/" + url.PathEscape(user.String())
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// verbs lists what the proxy accepts per section.
var verbs = map[models.Section][]string{
	models.SectionTheme:         {http.MethodGet, http.MethodPut, http.MethodDelete},
	models.SectionLanguage:      {http.MethodGet, http.MethodPut, http.MethodDelete},
	models.SectionSecurity:      {http.MethodGet, http.MethodPut, http.MethodDelete},
	models.SectionNotifications: {http.MethodPut},
	models.SectionPrivacy:       {http.MethodPut},
	models.SectionFull:          {http.MethodGet, http.MethodPut},
}

// Supports reports whether the proxy accepts method on section.
func Supports(section models.Section, method string) bool {
	return slices.Contains(verbs[section], method)
}

func sectionPath(user models.UserID, section models.Section) string {
	if section == models.SectionFull {
		return Path(user)
	}
	return Path(user, section.String())
}

func (c *Client) do(ctx context.Context, user models.UserID, method, path string, body any) (*gateway.Response, error) {
	if !user.Valid() {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	resp, err := c.doer.Do(ctx, gateway.Request{Method: method, Path: path, Body: body, Auth: gateway.AuthNone})
	if err != nil {
		c.logger.Debug("settings call failed", "method", method, "path", path, "err", err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) section(ctx context.Context, user models.UserID, section models.Section, method string, body any) (*gateway.Response, error) {
	if !Supports(section, method) {
		return nil, fmt.Errorf("%w: %s %s", shared.ErrUnsupportedSection, method, section)
	}
	return c.do(ctx, user, method, sectionPath(user, section), body)
}

// Get fetches one section, or the whole document for [models.SectionFull].
func (c *Client) Get(ctx context.Context, user models.UserID, section models.Section) (*gateway.Response, error) {
	return c.section(ctx, user, section, http.MethodGet, nil)
}

// Update replaces one section. For [models.SectionFull] body is a [models.SettingsUpdate].
func (c *Client) Update(ctx context.Context, user models.UserID, section models.Section, body any) (*gateway.Response, error) {
	return c.section(ctx, user, section, http.MethodPut, body)
}

// Reset restores one section to its defaults.
func (c *Client) Reset(ctx context.Context, user models.UserID, section models.Section) (*gateway.Response, error) {
	return c.section(ctx, user, section, http.MethodDelete, nil)
}

// GetAll fetches the full document. The proxy creates it with defaults on first read.
func (c *Client) GetAll(ctx context.Context, user models.UserID) (models.UserSettings, error) {
	resp, err := c.Get(ctx, user, models.SectionFull)
	if err != nil {
		return models.UserSettings{}, err
	}
	return decode[models.UserSettings](resp)
}

// UpdateAll applies the non-nil sections of update and returns the resulting document.
func (c *Client) UpdateAll(ctx context.Context, user models.UserID, update models.SettingsUpdate) (models.UserSettings, error) {
	if update.Empty() {
		return models.UserSettings{}, fmt.Errorf("%w: update has no sections", shared.ErrInvalidArgument)
	}
	resp, err := c.Update(ctx, user, models.SectionFull, update)
	if err != nil {
		return models.UserSettings{}, err
	}
	return decode[models.UserSettings](resp)
}

// Import replaces the stored document with doc.
func (c *Client) Import(ctx context.Context, user models.UserID, doc models.UserSettings) (models.UserSettings, error) {
	doc.UserID = user.String()
	resp, err := c.do(ctx, user, http.MethodPost, Path(user, "import"), doc)
	if err != nil {
		return models.UserSettings{}, err
	}
	return decode[models.UserSettings](resp)
}

// Export returns the stored document as the proxy serializes it.
func (c *Client) Export(ctx context.Context, user models.UserID) (*gateway.Response, error) {
	return c.do(ctx, user, http.MethodGet, Path(user, "export"), nil)
}

// ResetAll restores every section to its defaults.
func (c *Client) ResetAll(ctx context.Context, user models.UserID) (models.UserSettings, error) {
	resp, err := c.do(ctx, user, http.MethodPost, Path(user, "reset"), nil)
	if err != nil {
		return models.UserSettings{}, err
	}
	return decode[models.UserSettings](resp)
}

func (c *Client) Theme(ctx context.Context, user models.UserID) (models.ThemeSettings, error) {
	return getTyped[models.ThemeSettings](ctx, c, user, models.SectionTheme)
}

func (c *Client) Language(ctx context.Context, user models.UserID) (models.LanguageSettings, error) {
	return getTyped[models.LanguageSettings](ctx, c, user, models.SectionLanguage)
}

func (c *Client) Security(ctx context.Context, user models.UserID) (models.SecuritySettings, error) {
	return getTyped[models.SecuritySettings](ctx, c, user, models.SectionSecurity)
}

func getTyped[T any](ctx context.Context, c *Client, user models.UserID, section models.Section) (T, error) {
	resp, err := c.Get(ctx, user, section)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](resp)
}

func decode[T any](resp *gateway.Response) (T, error) {
	var v T
	if err := resp.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}
