package handler

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/edirooss/listmux/internal/client"
	"github.com/edirooss/listmux/internal/crdt"
	"github.com/edirooss/listmux/internal/store"
	"github.com/edirooss/listmux/pkg/jsonx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListsHandler provides RESTful HTTP handlers for shopping lists backed by
// the cluster client.
//
// Supported operations:
//   - POST   /api/lists                                → Create a list
//   - GET    /api/lists/{id}                           → Read a list
//   - DELETE /api/lists/{id}                           → Delete a list
//   - POST   /api/lists/{id}/items                     → Add an item
//   - DELETE /api/lists/{id}/items/{itemID}            → Remove an item
//   - POST   /api/lists/{id}/items/{itemID}/acquire    → Mark purchased
//   - POST   /api/lists/{id}/items/{itemID}/increment  → Grow quantity
//   - POST   /api/lists/{id}/items/{itemID}/decrement  → Shrink quantity
//
// Edits apply to the local cache first and then sync through the cluster;
// with the broker unreachable the edit stands locally and the response
// carries X-Listmux-Offline: true. The next successful write heals the
// divergence through the CRDT merge.
type ListsHandler struct {
	log *zap.Logger
	cli *client.Client

	snapshotPath string
}

// NewListsHandler constructs a ListsHandler instance.
func NewListsHandler(log *zap.Logger, cli *client.Client, snapshotPath string) *ListsHandler {
	return &ListsHandler{
		log:          log.Named("lists"),
		cli:          cli,
		snapshotPath: snapshotPath,
	}
}

type createListReq struct {
	ListID string `json:"list_id"`
}

type addItemReq struct {
	Name     string `json:"name"`
	Quantity uint64 `json:"quantity"`
}

type adjustReq struct {
	Value uint64 `json:"value"`
}

type itemView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Acquired bool   `json:"acquired"`
}

type listView struct {
	ListID   string     `json:"list_id"`
	Items    []itemView `json:"items"`
	Acquired []itemView `json:"acquired"`
}

// CreateList handles POST /api/lists.
func (h *ListsHandler) CreateList(c *gin.Context) {
	var req createListReq
	if c.Request.ContentLength > 0 {
		if err := jsonx.ParseJSONObject(c.Request.Body, &req); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
	}
	if req.ListID == "" {
		req.ListID = uuid.NewString()
	}

	offline := false
	if err := h.cli.CreateList(req.ListID); err != nil {
		if !errors.Is(err, client.ErrUnavailable) {
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		offline = true
	}
	h.cli.Manager().CreateListWithID(req.ListID)
	h.snapshot()

	h.setOffline(c, offline)
	c.Header("Location", "/api/lists/"+req.ListID)
	c.JSON(http.StatusCreated, gin.H{"list_id": req.ListID})
}

// GetList handles GET /api/lists/{id}.
func (h *ListsHandler) GetList(c *gin.Context) {
	listID := c.Param("id")

	offline := false
	l, err := h.cli.GetList(listID)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrUnavailable):
			offline = true
			local, ok := h.cli.Manager().List(listID)
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"message": store.ErrListNotFound.Error()})
				return
			}
			l = local
		case errors.Is(err, client.ErrNotFound):
			_ = c.Error(err)
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
			return
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
	} else {
		h.cli.Manager().Replace(listID, l)
		h.snapshot()
	}

	h.setOffline(c, offline)
	c.JSON(http.StatusOK, viewOf(listID, l))
}

// DeleteList handles DELETE /api/lists/{id}.
func (h *ListsHandler) DeleteList(c *gin.Context) {
	listID := c.Param("id")

	offline := false
	if err := h.cli.DeleteList(listID); err != nil {
		switch {
		case errors.Is(err, client.ErrUnavailable):
			offline = true
		case errors.Is(err, client.ErrNotFound):
			_ = c.Error(err)
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
			return
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
	}
	h.cli.Manager().DeleteList(listID)
	h.snapshot()

	h.setOffline(c, offline)
	c.JSON(http.StatusOK, gin.H{"list_id": listID})
}

// AddItem handles POST /api/lists/{id}/items.
func (h *ListsHandler) AddItem(c *gin.Context) {
	listID := c.Param("id")

	var req addItemReq
	if err := jsonx.ParseJSONObject(c.Request.Body, &req); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "item name required"})
		return
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}

	if err := h.ensureLocal(c, listID); err != nil {
		return
	}
	itemID, err := h.cli.Manager().AddItem(listID, name, qty)
	if err != nil {
		_ = c.Error(err)
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrDuplicateItem) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"message": err.Error()})
		return
	}

	l, offline := h.sync(listID)
	h.setOffline(c, offline)
	c.JSON(http.StatusCreated, gin.H{"item_id": itemID, "list": viewOf(listID, l)})
}

// RemoveItem handles DELETE /api/lists/{id}/items/{itemID}.
func (h *ListsHandler) RemoveItem(c *gin.Context) {
	h.itemOp(c, func(listID, itemID string) error {
		return h.cli.Manager().RemoveItem(listID, itemID)
	})
}

// AcquireItem handles POST /api/lists/{id}/items/{itemID}/acquire.
func (h *ListsHandler) AcquireItem(c *gin.Context) {
	h.itemOp(c, func(listID, itemID string) error {
		return h.cli.Manager().AcquireItem(listID, itemID)
	})
}

// IncrementItem handles POST /api/lists/{id}/items/{itemID}/increment.
func (h *ListsHandler) IncrementItem(c *gin.Context) {
	v := h.adjustValue(c)
	if v == 0 {
		return
	}
	h.itemOp(c, func(listID, itemID string) error {
		return h.cli.Manager().IncrementItem(listID, itemID, v)
	})
}

// DecrementItem handles POST /api/lists/{id}/items/{itemID}/decrement.
func (h *ListsHandler) DecrementItem(c *gin.Context) {
	v := h.adjustValue(c)
	if v == 0 {
		return
	}
	h.itemOp(c, func(listID, itemID string) error {
		return h.cli.Manager().DecrementItem(listID, itemID, v)
	})
}

func (h *ListsHandler) adjustValue(c *gin.Context) uint64 {
	req := adjustReq{Value: 1}
	if c.Request.ContentLength > 0 {
		if err := jsonx.ParseJSONObject(c.Request.Body, &req); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return 0
		}
	}
	if req.Value == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "value must be positive"})
		return 0
	}
	return req.Value
}

func (h *ListsHandler) itemOp(c *gin.Context, op func(listID, itemID string) error) {
	listID := c.Param("id")
	itemID := c.Param("itemID")

	if err := h.ensureLocal(c, listID); err != nil {
		return
	}
	if err := op(listID, itemID); err != nil {
		_ = c.Error(err)
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrItemNotFound) || errors.Is(err, store.ErrListNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"message": err.Error()})
		return
	}

	l, offline := h.sync(listID)
	h.setOffline(c, offline)
	c.JSON(http.StatusOK, viewOf(listID, l))
}

// ensureLocal makes sure the cache holds listID, fetching it from the
// cluster when possible. Writes the error response itself on failure.
func (h *ListsHandler) ensureLocal(c *gin.Context, listID string) error {
	if h.cli.Manager().Has(listID) {
		return nil
	}
	l, err := h.cli.GetList(listID)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrUnavailable), errors.Is(err, client.ErrNotFound):
			_ = c.Error(err)
			c.JSON(http.StatusNotFound, gin.H{"message": store.ErrListNotFound.Error()})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
		return err
	}
	h.cli.Manager().Replace(listID, l)
	return nil
}

// sync pushes the local list state through the cluster and returns the state
// to render plus whether the sync failed. On any failure (broker unreachable
// or a rejected write) the local cache state is returned and the flag is true.
func (h *ListsHandler) sync(listID string) (*crdt.ShoppingList, bool) {
	merged, err := h.cli.SyncList(listID)
	if err == nil {
		h.snapshot()
		return merged, false
	}
	if !errors.Is(err, client.ErrUnavailable) {
		h.log.Warn("sync failed", zap.String("list_id", listID), zap.Error(err))
	}
	h.snapshot()
	local, _ := h.cli.Manager().List(listID)
	return local, true
}

func (h *ListsHandler) snapshot() {
	if h.snapshotPath == "" {
		return
	}
	if err := store.SaveSnapshot(h.snapshotPath, h.cli.Manager()); err != nil {
		h.log.Warn("snapshot failed", zap.Error(err))
	}
}

func (h *ListsHandler) setOffline(c *gin.Context, offline bool) {
	c.Header("X-Listmux-Offline", map[bool]string{true: "true", false: "false"}[offline])
}

func viewOf(listID string, l *crdt.ShoppingList) listView {
	view := listView{ListID: listID, Items: []itemView{}, Acquired: []itemView{}}
	if l == nil {
		return view
	}
	for id, it := range l.Items() {
		view.Items = append(view.Items, itemView{ID: id, Name: it.Name, Quantity: it.Quantity, Acquired: it.Acquired})
	}
	for id, it := range l.AcquiredItems() {
		view.Acquired = append(view.Acquired, itemView{ID: id, Name: it.Name, Quantity: it.Quantity, Acquired: it.Acquired})
	}
	sort.Slice(view.Items, func(i, j int) bool { return view.Items[i].Name < view.Items[j].Name })
	sort.Slice(view.Acquired, func(i, j int) bool { return view.Acquired[i].Name < view.Acquired[j].Name })
	return view
}
