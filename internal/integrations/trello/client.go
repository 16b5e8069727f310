// Package trello wraps the Trello REST API. Authentication rides on every
// request as key/token query parameters; non-2xx responses are classified
// into a small closed set of semantic error kinds.
package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.trello.com/1"

// API is the surface of the Trello client consumed by pipeline steps.
type API interface {
	SearchCards(ctx context.Context, query, boardID string) ([]Card, error)
	Card(ctx context.Context, cardID string) (*Card, error)
	CardActions(ctx context.Context, cardID string) ([]CardAction, error)
	CardAttachments(ctx context.Context, cardID string) ([]Attachment, error)
	AddAttachment(ctx context.Context, cardID, link string) error
	Member(ctx context.Context, username string) (*Member, error)
	BoardLabels(ctx context.Context, boardID string) ([]Label, error)
	BoardLists(ctx context.Context, boardID string) ([]List, error)
	CreateCard(ctx context.Context, listID, name, desc string) (*Card, error)
	MoveCard(ctx context.Context, cardID, listID, boardID string) error
	ArchiveCard(ctx context.Context, cardID string) error
	AddLabel(ctx context.Context, cardID, labelID string) error
	AddMember(ctx context.Context, cardID, memberID string) error
	RemoveMember(ctx context.Context, cardID, memberID string) error
}

// Client is the Trello REST client.
type Client struct {
	http         *http.Client
	baseURL      string
	apiKey       string
	token        string
	cardPosition string
}

var _ API = (*Client)(nil)

// NewClient creates a Trello client. cardPosition ("top" or "bottom")
// applies to created and moved cards.
func NewClient(apiKey, token, cardPosition string) *Client {
	return &Client{
		http:         &http.Client{Timeout: 30 * time.Second},
		baseURL:      defaultBaseURL,
		apiKey:       apiKey,
		token:        token,
		cardPosition: cardPosition,
	}
}

// WithBaseURL points the client at a different API root. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// SearchCards runs a free-text card search, optionally scoped to one board.
func (c *Client) SearchCards(ctx context.Context, query, boardID string) ([]Card, error) {
	params := url.Values{
		"modelTypes": {"cards"},
		"query":      {query},
	}
	if boardID != "" {
		params.Set("idBoards", boardID)
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/search", params, &resp); err != nil {
		return nil, err
	}
	return resp.Cards, nil
}

// Card fetches a card by id.
func (c *Client) Card(ctx context.Context, cardID string) (*Card, error) {
	var card Card
	if err := c.do(ctx, http.MethodGet, "/cards/"+cardID, nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// CardActions fetches a card's action/history log.
func (c *Client) CardActions(ctx context.Context, cardID string) ([]CardAction, error) {
	var actions []CardAction
	if err := c.do(ctx, http.MethodGet, "/cards/"+cardID+"/actions", nil, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// CardAttachments fetches the links attached to a card.
func (c *Client) CardAttachments(ctx context.Context, cardID string) ([]Attachment, error) {
	var attachments []Attachment
	if err := c.do(ctx, http.MethodGet, "/cards/"+cardID+"/attachments", nil, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// AddAttachment attaches a link to a card.
func (c *Client) AddAttachment(ctx context.Context, cardID, link string) error {
	slog.Info("adding attachment to card", "card", cardID, "url", link)

	return c.do(ctx, http.MethodPost, "/cards/"+cardID+"/attachments", url.Values{"url": {link}}, nil)
}

// Member fetches a Trello member with all workspace memberships.
// An unknown username resolves to nil, not an error.
func (c *Client) Member(ctx context.Context, username string) (*Member, error) {
	var member Member
	err := c.do(ctx, http.MethodGet, "/members/"+username, url.Values{"organizations": {"all"}}, &member)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// BoardLabels fetches the labels of a board.
// Labels with no name are filtered out: an empty name would prefix-match
// every branch category and end up on every card.
func (c *Client) BoardLabels(ctx context.Context, boardID string) ([]Label, error) {
	var labels []Label
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID+"/labels", nil, &labels); err != nil {
		return nil, err
	}

	named := labels[:0]
	for _, l := range labels {
		if l.Name != "" {
			named = append(named, l)
		}
	}
	return named, nil
}

// BoardLists fetches the lists of a board.
func (c *Client) BoardLists(ctx context.Context, boardID string) ([]List, error) {
	var lists []List
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID+"/lists", nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// CreateCard creates a card at the configured position of a list.
func (c *Client) CreateCard(ctx context.Context, listID, name, desc string) (*Card, error) {
	slog.Info("creating card", "list", listID, "name", name)

	params := url.Values{
		"idList": {listID},
		"name":   {name},
		"desc":   {desc},
	}
	if c.cardPosition != "" {
		params.Set("pos", c.cardPosition)
	}

	var card Card
	if err := c.do(ctx, http.MethodPost, "/cards", params, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// MoveCard moves a card to a list, optionally forcing the board.
func (c *Client) MoveCard(ctx context.Context, cardID, listID, boardID string) error {
	slog.Info("moving card to list", "card", cardID, "list", listID, "board", boardID)

	params := url.Values{"idList": {listID}}
	if boardID != "" {
		params.Set("idBoard", boardID)
	}
	if c.cardPosition != "" {
		params.Set("pos", c.cardPosition)
	}
	return c.do(ctx, http.MethodPut, "/cards/"+cardID, params, nil)
}

// ArchiveCard closes a card.
func (c *Client) ArchiveCard(ctx context.Context, cardID string) error {
	slog.Info("archiving card", "card", cardID)

	return c.do(ctx, http.MethodPut, "/cards/"+cardID, url.Values{"closed": {"true"}}, nil)
}

// AddLabel adds a board label to a card.
func (c *Client) AddLabel(ctx context.Context, cardID, labelID string) error {
	slog.Info("adding label to card", "card", cardID, "label", labelID)

	return c.do(ctx, http.MethodPost, "/cards/"+cardID+"/idLabels", url.Values{"value": {labelID}}, nil)
}

// AddMember assigns a member to a card.
func (c *Client) AddMember(ctx context.Context, cardID, memberID string) error {
	slog.Info("adding member to card", "card", cardID, "member", memberID)

	return c.do(ctx, http.MethodPost, "/cards/"+cardID+"/idMembers", url.Values{"value": {memberID}}, nil)
}

// RemoveMember unassigns a member from a card.
func (c *Client) RemoveMember(ctx context.Context, cardID, memberID string) error {
	slog.Info("removing member from card", "card", cardID, "member", memberID)

	return c.do(ctx, http.MethodDelete, "/cards/"+cardID+"/idMembers/"+memberID, nil, nil)
}

// do issues one authenticated request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.apiKey)
	params.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("trello: failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("trello: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("trello: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(body)),
			Kind:       classifyError(string(body)),
		}
		slog.Error("trello request was rejected",
			"method", method, "path", path, "status", resp.StatusCode, "body", apiErr.Body)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("trello: failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
