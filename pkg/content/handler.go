package content

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"assetbay/pkg/assets"
	"assetbay/pkg/identity"
	"assetbay/pkg/response"
)

type ContentHandler struct {
	files  FileRepository
	assets assets.AssetService
}

func NewContentHandler(files FileRepository, assetService assets.AssetService) *ContentHandler {
	return &ContentHandler{files: files, assets: assetService}
}

func (h *ContentHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/files", h.uploadFile)
	router.GET("/files/:hash", h.getFile)
	router.POST("/assets/with-file", h.uploadAssetWithFile)
}

type uploadFileRequest struct {
	Hash        string `json:"hash" binding:"required"`
	ContentType string `json:"content_type"`
	Data        string `json:"data" binding:"required"` // base64
}

type uploadAssetWithFileRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	FileHash    string   `json:"file_hash" binding:"required"`
	FileType    string   `json:"file_type"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	PreviewURL  string   `json:"preview_url"`
	Data        string   `json:"data" binding:"required"` // base64
}

// @Summary      Upload a content file
// @Description  Stores a blob keyed by its content hash. Duplicate hashes are rejected.
// @Tags         content
// @Accept       json
// @Produce      json
// @Param        request body uploadFileRequest true "File upload request"
// @Success      201  {object}  response.APIResponse{data=File} "File stored"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Failure      409  {object}  response.APIResponse "File already exists"
// @Router       /files [post]
func (h *ContentHandler) uploadFile(c *gin.Context) {
	caller, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	var req uploadFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "data must be base64 encoded", nil)
		return
	}

	meta, err := h.files.SaveFile(c.Request.Context(), File{
		Hash:        req.Hash,
		Uploader:    caller,
		ContentType: req.ContentType,
	}, data)
	if err != nil {
		if errors.Is(err, ErrFileExists) {
			response.SendAPIResponse(c, http.StatusConflict, false, "file already exists", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "file stored", meta)
}

// @Summary      Fetch a content file
// @Tags         content
// @Produce      octet-stream
// @Param        hash  path  string  true  "Content hash"
// @Success      200  {file}    binary "File bytes"
// @Failure      404  {object}  response.APIResponse "File not found"
// @Router       /files/{hash} [get]
func (h *ContentHandler) getFile(c *gin.Context) {
	hash := c.Param("hash")
	if hash == "" {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid file hash", nil)
		return
	}

	meta, data, err := h.files.GetFile(c.Request.Context(), hash)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			response.SendAPIResponse(c, http.StatusNotFound, false, "file not found", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

// @Summary      Upload a file and register its asset
// @Description  Stores the blob, then registers an asset referencing it. The blob write is kept even if registration fails, so a retry with the same hash can skip back to registration.
// @Tags         content
// @Accept       json
// @Produce      json
// @Param        request body uploadAssetWithFileRequest true "Combined upload request"
// @Success      201  {object}  response.APIResponse{data=assets.Asset} "Asset registered"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Router       /assets/with-file [post]
func (h *ContentHandler) uploadAssetWithFile(c *gin.Context) {
	caller, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	var req uploadAssetWithFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	if req.Price < 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "price cannot be negative", nil)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "data must be base64 encoded", nil)
		return
	}

	if _, err := h.files.SaveFile(c.Request.Context(), File{
		Hash:        req.FileHash,
		Uploader:    caller,
		ContentType: req.FileType,
	}, data); err != nil && !errors.Is(err, ErrFileExists) {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	asset, err := h.assets.UploadAsset(c.Request.Context(), caller, assets.Asset{
		Name:        req.Name,
		Description: req.Description,
		FileHash:    req.FileHash,
		FileType:    req.FileType,
		FileSize:    int64(len(data)),
		Price:       req.Price,
		Category:    req.Category,
		Tags:        req.Tags,
		PreviewURL:  req.PreviewURL,
	})
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "asset registered", asset)
}
