package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
	"github.com/dmitrijs2005/bookkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// BookService is satisfied by *services.BookService.
type BookService interface {
	Create(ctx context.Context, userID, title, author string) (*models.Book, error)
	List(ctx context.Context, userID string) ([]models.Book, error)
	Get(ctx context.Context, userID, id string) (*models.Book, error)
	Update(ctx context.Context, userID, id, title, author string) (*models.Book, error)
	Delete(ctx context.Context, userID, id string) error
}

var _ BookService = (*services.BookService)(nil)

type BooksHandler struct {
	books BookService
}

func NewBooksHandler(books BookService) *BooksHandler {
	return &BooksHandler{books: books}
}

type bookRequest struct {
	Title  string `json:"title" validate:"required,max=200"`
	Author string `json:"author" validate:"required,max=200"`
}

// MountRoutes registers /api/books. Every route requires authn.
func (h *BooksHandler) MountRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Use(authn)
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *BooksHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	b, err := h.books.Create(r.Context(), claims.ID, req.Title, req.Author)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusCreated, "Book created", b)
}

func (h *BooksHandler) list(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	list, err := h.books.List(r.Context(), claims.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusOK, "Books fetched", list)
}

func (h *BooksHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		sendResponse(w, http.StatusNotFound, "Book not found", nil)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	b, err := h.books.Get(r.Context(), claims.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusOK, "Book fetched", b)
}

func (h *BooksHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		sendResponse(w, http.StatusNotFound, "Book not found", nil)
		return
	}
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	b, err := h.books.Update(r.Context(), claims.ID, id, req.Title, req.Author)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusOK, "Book updated", b)
}

func (h *BooksHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		sendResponse(w, http.StatusNotFound, "Book not found", nil)
		return
	}
	claims, _ := ClaimsFromContext(r.Context())

	if err := h.books.Delete(r.Context(), claims.ID, id); err != nil {
		writeError(w, err)
		return
	}
	sendResponse(w, http.StatusOK, "Book deleted", map[string]int{"deleted": 1})
}
