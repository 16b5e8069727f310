package trello

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-key", "test-token", "top").WithBaseURL(server.URL)
}

func TestClientInjectsCredentials(t *testing.T) {
	var query map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{"id":"card1"}`))
	})

	_, err := client.Card(context.Background(), "card1")
	require.NoError(t, err)

	assert.Equal(t, []string{"test-key"}, query["key"])
	assert.Equal(t, []string{"test-token"}, query["token"])
}

func TestSearchCards(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "42-api-rework", r.URL.Query().Get("query"))
		assert.Equal(t, "board1", r.URL.Query().Get("idBoards"))
		w.Write([]byte(`{"cards":[{"id":"card1","idShort":42,"shortLink":"sl42"}]}`))
	})

	cards, err := client.SearchCards(context.Background(), "42-api-rework", "board1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "sl42", cards[0].ShortLink)
	assert.Equal(t, 42, cards[0].IDShort)
}

func TestCreateCardUsesConfiguredPosition(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cards", r.URL.Path)
		assert.Equal(t, "list1", r.URL.Query().Get("idList"))
		assert.Equal(t, "top", r.URL.Query().Get("pos"))
		w.Write([]byte(`{"id":"new","shortLink":"slNew","shortUrl":"https://trello.com/c/slNew"}`))
	})

	card, err := client.CreateCard(context.Background(), "list1", "My card", "desc")
	require.NoError(t, err)
	assert.Equal(t, "slNew", card.ShortLink)
}

func TestMoveCard(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/cards/card1", r.URL.Path)
		assert.Equal(t, "list2", r.URL.Query().Get("idList"))
		assert.Equal(t, "board2", r.URL.Query().Get("idBoard"))
		w.Write([]byte(`{}`))
	})

	err := client.MoveCard(context.Background(), "card1", "list2", "board2")
	assert.NoError(t, err)
}

func TestArchiveCard(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/cards/card1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("closed"))
		w.Write([]byte(`{}`))
	})

	assert.NoError(t, client.ArchiveCard(context.Background(), "card1"))
}

func TestMemberUnknownUsernameIsNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "member not found", http.StatusNotFound)
	})

	member, err := client.Member(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, member)
}

func TestMemberParsesOrganizations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/members/octocat", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("organizations"))
		w.Write([]byte(`{"id":"m1","organizations":[{"name":"acme"}]}`))
	})

	member, err := client.Member(context.Background(), "octocat")
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, "m1", member.ID)
	require.Len(t, member.Organizations, 1)
	assert.Equal(t, "acme", member.Organizations[0].Name)
}

func TestBoardLabelsFiltersUnnamed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"l1","name":"feature"},{"id":"l2","name":""},{"id":"l3","name":"bug"}]`))
	})

	labels, err := client.BoardLabels(context.Background(), "board1")
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "feature", labels[0].Name)
	assert.Equal(t, "bug", labels[1].Name)
}

func TestRejectedRequestBecomesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "member is already on the card", http.StatusBadRequest)
	})

	err := client.AddMember(context.Background(), "card1", "m1")
	require.Error(t, err)
	assert.True(t, IsAlreadyPresent(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "/cards/card1/idMembers", apiErr.Path)
}
