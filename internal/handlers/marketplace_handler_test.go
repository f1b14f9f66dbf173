package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pixelListing = echo.Map{
	"brand":       "Google",
	"model":       "Pixel 8",
	"storage":     "128GB",
	"condition":   "good",
	"price":       420,
	"currency":    "eur",
	"location":    "Berlin",
	"contactInfo": "carol@example.com",
}

func TestListingModeration(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/marketplace/listings", "carol", pixelListing)
	requireStatus(t, http.StatusCreated, rec)
	listing := decode[models.PhoneListing](t, rec)
	assert.Equal(t, models.ListingPending, listing.Status)
	assert.Equal(t, "EUR", listing.Currency)
	assert.Equal(t, "carol", listing.Seller.ID)
	assert.NotNil(t, listing.Images)

	// Pending listings stay off the public board and are hidden from others.
	rec = h.do(t, http.MethodGet, "/api/v1/marketplace/listings", "", nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Empty(t, decode[[]models.PhoneListing](t, rec))
	requireStatus(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/marketplace/listings/"+listing.ID, "alice", nil))
	requireStatus(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/marketplace/listings/"+listing.ID, "carol", nil))

	rec = h.do(t, http.MethodGet, "/api/v1/admin/listings/pending", "root", nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Len(t, decode[[]models.PhoneListing](t, rec), 1)

	approve := echo.Map{"status": "approved"}
	requireStatus(t, http.StatusForbidden, h.do(t, http.MethodPut, "/api/v1/admin/listings/"+listing.ID+"/status", "carol", approve))
	rec = h.do(t, http.MethodPut, "/api/v1/admin/listings/"+listing.ID+"/status", "root", approve)
	requireStatus(t, http.StatusOK, rec)
	assert.Equal(t, models.ListingApproved, decode[models.PhoneListing](t, rec).Status)

	rec = h.do(t, http.MethodGet, "/api/v1/marketplace/listings?brand=Google&maxPrice=500", "", nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Len(t, decode[[]models.PhoneListing](t, rec), 1)

	rec = h.do(t, http.MethodGet, "/api/v1/marketplace/listings?minPrice=500", "", nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Empty(t, decode[[]models.PhoneListing](t, rec))

	requireStatus(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/marketplace/listings?minPrice=cheap", "", nil))

	// The seller hears about the decision.
	rec = h.do(t, http.MethodGet, "/api/v1/notifications/unread-count", "carol", nil)
	requireStatus(t, http.StatusOK, rec)
	unread := decode[struct {
		Data struct {
			Count int64 `json:"count"`
		} `json:"data"`
	}](t, rec)
	assert.EqualValues(t, 1, unread.Data.Count)

	requireStatus(t, http.StatusForbidden, h.do(t, http.MethodPut, "/api/v1/marketplace/listings/"+listing.ID+"/sold", "alice", nil))
	rec = h.do(t, http.MethodPut, "/api/v1/marketplace/listings/"+listing.ID+"/sold", "carol", nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Equal(t, models.ListingSold, decode[models.PhoneListing](t, rec).Status)

	var statusEvents int
	for _, ev := range h.events.Events {
		if ev.Type == events.ListingStatusChanged {
			statusEvents++
		}
	}
	assert.Equal(t, 2, statusEvents)

	requireStatus(t, http.StatusForbidden, h.do(t, http.MethodDelete, "/api/v1/marketplace/listings/"+listing.ID, "alice", nil))
	requireStatus(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/v1/marketplace/listings/"+listing.ID, "root", nil))
	requireStatus(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/marketplace/listings/"+listing.ID, "carol", nil))
}

func TestBuyerRequests(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/marketplace/requests", "alice", echo.Map{
		"model": "iPhone 13", "budgetRange": "300-400", "condition": "any", "location": "Lisbon",
	})
	requireStatus(t, http.StatusCreated, rec)
	br := decode[models.BuyerRequest](t, rec)
	assert.Equal(t, "alice", br.Buyer.ID)

	rec = h.do(t, http.MethodGet, "/api/v1/marketplace/requests", "", nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Len(t, decode[[]models.BuyerRequest](t, rec), 1)

	requireStatus(t, http.StatusForbidden, h.do(t, http.MethodDelete, "/api/v1/marketplace/requests/"+br.ID, "bob", nil))
	requireStatus(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/v1/marketplace/requests/"+br.ID, "alice", nil))
	requireStatus(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/v1/marketplace/requests/"+br.ID, "alice", nil))
}

func TestAdminStats(t *testing.T) {
	h := newHarness(t)

	requireStatus(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/v1/marketplace/listings", "carol", pixelListing))
	requireStatus(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/v1/calls", "alice", echo.Map{"receiver_id": "bob"}))

	rec := h.do(t, http.MethodGet, "/api/v1/admin/stats", "root", nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Equal(t, Stats{
		Users:           4,
		PublishedPosts:  4,
		PendingPosts:    2,
		PendingListings: 1,
		RingingCalls:    1,
	}, decode[Stats](t, rec))
}

func TestAdminUserRoles(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/admin/users?limit=2", "root", nil)
	requireStatus(t, http.StatusOK, rec)
	listed := decode[struct {
		Data []models.User `json:"data"`
		Meta struct {
			TotalItems int64 `json:"totalItems"`
			TotalPages int   `json:"totalPages"`
		} `json:"meta"`
	}](t, rec)
	assert.Len(t, listed.Data, 2)
	assert.EqualValues(t, 4, listed.Meta.TotalItems)
	assert.Equal(t, 2, listed.Meta.TotalPages)

	requireStatus(t, http.StatusBadRequest, h.do(t, http.MethodPut, "/api/v1/admin/users/alice/role", "root", echo.Map{"role": "owner"}))
	requireStatus(t, http.StatusBadRequest, h.do(t, http.MethodPut, "/api/v1/admin/users/root/role", "root", echo.Map{"role": "user"}))
	requireStatus(t, http.StatusOK, h.do(t, http.MethodPut, "/api/v1/admin/users/alice/role", "root", echo.Map{"role": "moderator"}))

	user, err := h.users.GetUserByID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, user.Role)
}

func TestNotificationsReadState(t *testing.T) {
	h := newHarness(t)

	// A friend request notifies its addressee.
	requireStatus(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/v1/friends/requests", "alice", echo.Map{"to_id": "bob"}))

	rec := h.do(t, http.MethodGet, "/api/v1/notifications", "bob", nil)
	requireStatus(t, http.StatusOK, rec)
	listed := decode[struct {
		Data struct {
			Notifications []EnrichedNotification `json:"notifications"`
		} `json:"data"`
	}](t, rec)
	require.Len(t, listed.Data.Notifications, 1)
	n := listed.Data.Notifications[0]
	assert.Equal(t, "alice", n.Actor.ID)
	assert.Equal(t, "Alice", n.Actor.Name)
	assert.False(t, n.IsRead)

	rec = h.do(t, http.MethodGet, "/api/v1/notifications/grouped", "bob", nil)
	requireStatus(t, http.StatusOK, rec)
	grouped := decode[struct {
		Data struct {
			Notifications struct {
				Today []EnrichedNotification `json:"today"`
			} `json:"notifications"`
			UnreadCount int64 `json:"unreadCount"`
		} `json:"data"`
	}](t, rec)
	assert.Len(t, grouped.Data.Notifications.Today, 1)
	assert.EqualValues(t, 1, grouped.Data.UnreadCount)

	path := "/api/v1/notifications/" + strconv.FormatUint(uint64(n.ID), 10) + "/read"
	requireStatus(t, http.StatusNotFound, h.do(t, http.MethodPut, path, "alice", nil))
	requireStatus(t, http.StatusOK, h.do(t, http.MethodPut, path, "bob", nil))
	requireStatus(t, http.StatusBadRequest, h.do(t, http.MethodPut, "/api/v1/notifications/abc/read", "bob", nil))

	count, err := h.notifications.GetUnreadCount(context.Background(), "bob")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpload(t *testing.T) {
	h := newHarness(t)

	upload := func(query string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/upload"+query, bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, "text/plain")
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+h.token(t, "alice"))
		rec := httptest.NewRecorder()
		h.e.ServeHTTP(rec, req)
		return rec
	}

	requireStatus(t, http.StatusBadRequest, upload("", []byte("notes")))
	requireStatus(t, http.StatusRequestEntityTooLarge, upload("?filename=big.txt", bytes.Repeat([]byte("x"), 4096)))

	rec := upload("?filename=notes.txt", []byte("meeting notes"))
	requireStatus(t, http.StatusCreated, rec)
	url := decode[map[string]string](t, rec)["url"]
	require.True(t, strings.HasPrefix(url, "http://files.test/uploads/notes-"), url)

	obj, ok := h.store.Get(strings.TrimPrefix(url, "http://files.test/"))
	require.True(t, ok)
	assert.Equal(t, "meeting notes", string(obj.Data))
	assert.Equal(t, "text/plain", obj.ContentType)
}
