package trello

import "time"

// Card is the remote card entity. The board is the source of truth; cards
// are read fresh inside every reconciliation call, never cached across runs.
type Card struct {
	ID               string    `json:"id"`
	IDShort          int       `json:"idShort"`
	IDBoard          string    `json:"idBoard"`
	IDList           string    `json:"idList"`
	IDMembers        []string  `json:"idMembers"`
	Labels           []Label   `json:"labels"`
	URL              string    `json:"url"`
	ShortURL         string    `json:"shortUrl"`
	ShortLink        string    `json:"shortLink"`
	Closed           bool      `json:"closed"`
	DateLastActivity time.Time `json:"dateLastActivity"`
}

// Label is a board-scoped label.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CardAction is one entry of a card's action/history log. Only the historic
// short id is consumed, to recognize cards that were renumbered by a board move.
type CardAction struct {
	Data struct {
		Card struct {
			IDShort int `json:"idShort"`
		} `json:"card"`
	} `json:"data"`
}

// Attachment is a link attached to a card.
type Attachment struct {
	URL string `json:"url"`
}

// List is a column on a board.
type List struct {
	ID string `json:"id"`
}

// Organization is a Trello workspace a member belongs to.
type Organization struct {
	Name string `json:"name"`
}

// Member is a Trello account with its workspace memberships.
type Member struct {
	ID            string         `json:"id"`
	Organizations []Organization `json:"organizations"`
}

// searchResponse is the shape of the /search endpoint response.
type searchResponse struct {
	Cards []Card `json:"cards"`
}
