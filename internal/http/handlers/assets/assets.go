package assets

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/princekumarofficial/catalog-service/internal/blobstore"
	"github.com/princekumarofficial/catalog-service/internal/catalog"
	"github.com/princekumarofficial/catalog-service/internal/http/middleware"
	assettypes "github.com/princekumarofficial/catalog-service/internal/types/assets"
	"github.com/princekumarofficial/catalog-service/internal/utils/response"
)

type AssetHandlers struct {
	ingestor *catalog.Ingestor
	engine   *catalog.Engine
	limits   catalog.Limits
	log      *zap.Logger
}

// PublishRequest sets the publish flag. An empty body flips it.
type PublishRequest struct {
	IsPublished *bool `json:"isPublished"`
}

type DeleteResponse struct {
	DeletedID string `json:"deletedId"`
}

// NewAssetHandlers creates a new asset handlers instance
func NewAssetHandlers(ingestor *catalog.Ingestor, engine *catalog.Engine, limits catalog.Limits, log *zap.Logger) *AssetHandlers {
	return &AssetHandlers{
		ingestor: ingestor,
		engine:   engine,
		limits:   limits,
		log:      log,
	}
}

// Create uploads a new asset
// @Summary Upload a new asset
// @Description Upload a video and its thumbnail. Both files are stored before the record is written; nothing is left behind on failure.
// @Tags assets
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title (3-100 characters)"
// @Param description formData string true "Description (10-1000 characters)"
// @Param isPublished formData bool false "Publish immediately"
// @Param video formData file true "Video file"
// @Param thumbnail formData file true "Thumbnail image"
// @Success 201 {object} response.Response{data=assets.Asset} "Asset created"
// @Failure 400 {object} response.Response "Validation failed"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 429 {object} response.Response "Rate limit exceeded"
// @Failure 500 {object} response.Response "Upload or persistence failure"
// @Security BearerAuth
// @Router /assets [post]
func (h *AssetHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		f, err := h.readForm(w, r)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		published, err := parseBool(f.field("isPublished"))
		if err != nil {
			f.release()
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("isPublished must be a boolean")))
			return
		}

		asset, err := h.ingestor.Create(r.Context(), catalog.CreateRequest{
			OwnerID:     userID,
			Title:       deref(f.field("title")),
			Description: deref(f.field("description")),
			Published:   published != nil && *published,
			Video:       f.files[blobstore.SlotVideo],
			Thumbnail:   f.files[blobstore.SlotThumbnail],
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusCreated, response.RequestOK("Asset created successfully", asset))
	}
}

// List returns published assets
// @Summary List published assets
// @Description Paginated listing. With q, rows are ordered by relevance first and sortBy breaks ties.
// @Tags assets
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (1-100, default 10)"
// @Param q query string false "Full text search"
// @Param sortBy query string false "createdAt, views, duration or title"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Response{data=assets.Page} "Assets fetched"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /assets [get]
func (h *AssetHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.engine.List(r.Context(), listQuery(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Assets fetched successfully", page))
	}
}

// ListByOwner returns one owner's assets
// @Summary List an owner's assets
// @Description The owner also sees unpublished assets.
// @Tags assets
// @Produce json
// @Param id path string true "Owner ID"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (1-100, default 10)"
// @Param q query string false "Full text search"
// @Param sortBy query string false "createdAt, views, duration or title"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Response{data=assets.Page} "Assets fetched"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /owners/{id}/assets [get]
func (h *AssetHandlers) ListByOwner() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.PathValue("id")
		if ownerID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("owner ID is required")))
			return
		}
		principal, _ := middleware.GetUserIDFromContext(r.Context())

		page, err := h.engine.ListByOwner(r.Context(), ownerID, principal, listQuery(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Assets fetched successfully", page))
	}
}

// Get returns one asset
// @Summary Get an asset
// @Description Returns the asset with like and comment counts and records the view.
// @Tags assets
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} response.Response{data=assets.Detail} "Asset fetched"
// @Failure 404 {object} response.Response "Asset not found"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /assets/{id} [get]
func (h *AssetHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID := r.PathValue("id")
		viewer, _ := middleware.GetUserIDFromContext(r.Context())

		detail, err := h.engine.Get(r.Context(), assetID, viewer)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Asset fetched successfully", detail))
	}
}

// Update changes an asset
// @Summary Update an asset
// @Description Partial update. Only sent fields change; replaced files are removed after the record is updated.
// @Tags assets
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Asset ID"
// @Param title formData string false "Title (3-100 characters)"
// @Param description formData string false "Description (10-1000 characters)"
// @Param video formData file false "Replacement video"
// @Param thumbnail formData file false "Replacement thumbnail"
// @Success 200 {object} response.Response{data=assets.Asset} "Asset updated"
// @Failure 400 {object} response.Response "Validation failed"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Not the owner"
// @Failure 404 {object} response.Response "Asset not found"
// @Failure 500 {object} response.Response "Upload or persistence failure"
// @Security BearerAuth
// @Router /assets/{id} [put]
func (h *AssetHandlers) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		f, err := h.readForm(w, r)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		asset, err := h.ingestor.Update(r.Context(), catalog.UpdateRequest{
			AssetID:     r.PathValue("id"),
			PrincipalID: userID,
			Title:       f.field("title"),
			Description: f.field("description"),
			Video:       f.files[blobstore.SlotVideo],
			Thumbnail:   f.files[blobstore.SlotThumbnail],
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Asset updated successfully", asset))
	}
}

// Delete removes an asset
// @Summary Delete an asset
// @Tags assets
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} response.Response{data=DeleteResponse} "Asset deleted"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Not the owner"
// @Failure 404 {object} response.Response "Asset not found"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /assets/{id} [delete]
func (h *AssetHandlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		assetID := r.PathValue("id")
		if err := h.ingestor.Delete(r.Context(), assetID, userID); err != nil {
			h.writeError(w, r, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Asset deleted successfully", DeleteResponse{DeletedID: assetID}))
	}
}

// Publish sets or flips the publish flag
// @Summary Publish or unpublish an asset
// @Tags assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param request body PublishRequest false "Explicit state; omit to toggle"
// @Success 200 {object} response.Response{data=assets.Asset} "Publish state changed"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 403 {object} response.Response "Not the owner"
// @Failure 404 {object} response.Response "Asset not found"
// @Security BearerAuth
// @Router /assets/{id}/publish [patch]
func (h *AssetHandlers) Publish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		var req PublishRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		asset, err := h.ingestor.SetPublished(r.Context(), r.PathValue("id"), userID, req.IsPublished)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, response.RequestOK("Publish status updated", asset))
	}
}

// writeError maps catalog failures onto status codes. Server side failures
// keep their detail in the log only.
func (h *AssetHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *catalog.Error
	if !errors.As(err, &ce) {
		h.log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		response.WriteJSON(w, http.StatusInternalServerError, response.ErrorMessage("internal server error"))
		return
	}

	status := http.StatusInternalServerError
	switch ce.Kind {
	case catalog.KindValidation:
		status = http.StatusBadRequest
	case catalog.KindForbidden:
		status = http.StatusForbidden
	case catalog.KindNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Stringer("kind", ce.Kind),
			zap.Error(err))
	}
	var ve validator.ValidationErrors
	if status == http.StatusBadRequest && errors.As(err, &ve) {
		response.WriteJSON(w, status, response.ValidationError(ce.Message, ve))
		return
	}
	response.WriteJSON(w, status, response.ErrorMessage(ce.Message))
}

func listQuery(r *http.Request) assettypes.ListQuery {
	v := r.URL.Query()
	return catalog.ParseListParams(v.Get("page"), v.Get("limit"), v.Get("q"), v.Get("sortBy"), v.Get("sortOrder"))
}

func parseBool(s *string) (*bool, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(*s))
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
