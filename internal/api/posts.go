package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/postboard/postboard-backend/internal/posts"
)

// ListPosts returns the caller's post summaries, newest first
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	callerID, _ := CallerID(r.Context())

	summaries, err := h.posts.List(r.Context(), callerID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summaries)
}

// GetPost answers 200 with the post, or 200 with null when the id is not an
// integer or matches nothing
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, verrs := posts.ParsePostID(chi.URLParam(r, "postId"))
	if len(verrs) > 0 {
		h.writeJSON(w, http.StatusOK, nil)
		return
	}

	callerID, _ := CallerID(r.Context())
	post, err := h.posts.Get(r.Context(), postID, callerID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if post == nil {
		h.writeJSON(w, http.StatusOK, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req posts.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	in, verrs := h.validator.ValidateCreate(req)
	if len(verrs) > 0 {
		h.writeValidationError(w, verrs)
		return
	}

	callerID, _ := CallerID(r.Context())
	if _, err := h.posts.Create(r.Context(), callerID, in); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, MessageResponse{Message: MsgPostAdded})
}

// UpdatePost answers 201 on success
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req posts.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	in, verrs := h.validator.ValidateUpdate(chi.URLParam(r, "postId"), req)
	if len(verrs) > 0 {
		h.writeValidationError(w, verrs)
		return
	}

	callerID, _ := CallerID(r.Context())
	if err := h.posts.Update(r.Context(), callerID, in); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, MessageResponse{Message: MsgPostUpdated})
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, verrs := posts.ParsePostID(chi.URLParam(r, "postId"))
	if len(verrs) > 0 {
		h.writeValidationError(w, verrs)
		return
	}

	callerID, _ := CallerID(r.Context())
	if err := h.posts.Delete(r.Context(), callerID, postID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, MessageResponse{Message: MsgPostDeleted})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.posts.ListCategories(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, categories)
}
