package content

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"assetbay/pkg/assets"
	"assetbay/pkg/identity"
	"assetbay/pkg/response"
)

type mockFileRepository struct {
	mock.Mock
}

func (m *mockFileRepository) SaveFile(ctx context.Context, meta File, data []byte) (File, error) {
	args := m.Called(ctx, meta, data)
	f, _ := args.Get(0).(File)
	return f, args.Error(1)
}

func (m *mockFileRepository) GetFile(ctx context.Context, hash string) (File, []byte, error) {
	args := m.Called(ctx, hash)
	f, _ := args.Get(0).(File)
	data, _ := args.Get(1).([]byte)
	return f, data, args.Error(2)
}

type mockAssetService struct {
	mock.Mock
}

func (m *mockAssetService) UploadAsset(ctx context.Context, caller string, input assets.Asset) (assets.Asset, error) {
	args := m.Called(ctx, caller, input)
	a, _ := args.Get(0).(assets.Asset)
	return a, args.Error(1)
}

func (m *mockAssetService) GetAssetByID(ctx context.Context, id int64) (assets.Asset, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(assets.Asset)
	return a, args.Error(1)
}

func (m *mockAssetService) ListAssets(ctx context.Context, filters assets.AssetFilters, page, limit int) ([]assets.Asset, int64, error) {
	args := m.Called(ctx, filters, page, limit)
	items, _ := args.Get(0).([]assets.Asset)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *mockAssetService) SearchAssets(ctx context.Context, query string, page, limit int) ([]assets.Asset, int64, error) {
	args := m.Called(ctx, query, page, limit)
	items, _ := args.Get(0).([]assets.Asset)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *mockAssetService) UpdatePrice(ctx context.Context, caller string, id int64, price int64) (assets.Asset, error) {
	args := m.Called(ctx, caller, id, price)
	a, _ := args.Get(0).(assets.Asset)
	return a, args.Error(1)
}

func (m *mockAssetService) SetForSale(ctx context.Context, caller string, id int64, forSale bool) (assets.Asset, error) {
	args := m.Called(ctx, caller, id, forSale)
	a, _ := args.Get(0).(assets.Asset)
	return a, args.Error(1)
}

func (m *mockAssetService) TransferOwner(ctx context.Context, caller string, id int64, newOwner string) (assets.Asset, error) {
	args := m.Called(ctx, caller, id, newOwner)
	a, _ := args.Get(0).(assets.Asset)
	return a, args.Error(1)
}

func (m *mockAssetService) MarketplaceTransfer(ctx context.Context, caller string, id int64, expectedOwner, newOwner string) (assets.Asset, error) {
	args := m.Called(ctx, caller, id, expectedOwner, newOwner)
	a, _ := args.Get(0).(assets.Asset)
	return a, args.Error(1)
}

func (m *mockAssetService) GetStats(ctx context.Context) (assets.AssetStats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(assets.AssetStats)
	return s, args.Error(1)
}

func setupContentRouter(t *testing.T, files FileRepository, assetService assets.AssetService) *gin.Engine {
	t.Setenv("IDENTITY_JWT_SECRET", "")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(identity.NewMiddleware().Resolve())
	NewContentHandler(files, assetService).RegisterRoutes(r)
	return r
}

func TestContentHandler_UploadFile_Success(t *testing.T) {
	files := new(mockFileRepository)
	r := setupContentRouter(t, files, nil)

	payload := []byte("model bytes")
	files.On("SaveFile", mock.Anything, File{Hash: "abc123", Uploader: "alice", ContentType: "model/gltf"}, payload).
		Return(File{Hash: "abc123", Uploader: "alice", ContentType: "model/gltf", Size: int64(len(payload))}, nil)

	body := `{"hash":"abc123","content_type":"model/gltf","data":"` + base64.StdEncoding.EncodeToString(payload) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/files", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal", "alice")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "file stored", resp.Message)

	files.AssertExpectations(t)
}

func TestContentHandler_UploadFile_Duplicate(t *testing.T) {
	files := new(mockFileRepository)
	r := setupContentRouter(t, files, nil)

	files.On("SaveFile", mock.Anything, mock.Anything, mock.Anything).Return(File{}, ErrFileExists)

	body := `{"hash":"abc123","data":"` + base64.StdEncoding.EncodeToString([]byte("x")) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/files", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal", "alice")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "file already exists", resp.Message)
}

func TestContentHandler_UploadFile_BadBase64(t *testing.T) {
	files := new(mockFileRepository)
	r := setupContentRouter(t, files, nil)

	req := httptest.NewRequest(http.MethodPost, "/files", strings.NewReader(`{"hash":"abc","data":"not-base64!!"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal", "alice")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	files.AssertNotCalled(t, "SaveFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestContentHandler_GetFile_ServesRawBytes(t *testing.T) {
	files := new(mockFileRepository)
	r := setupContentRouter(t, files, nil)

	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	files.On("GetFile", mock.Anything, "abc123").
		Return(File{Hash: "abc123", ContentType: "image/png"}, payload, nil)

	req := httptest.NewRequest(http.MethodGet, "/files/abc123", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.Equal(t, payload, w.Body.Bytes())
}

func TestContentHandler_GetFile_NotFound(t *testing.T) {
	files := new(mockFileRepository)
	r := setupContentRouter(t, files, nil)

	files.On("GetFile", mock.Anything, "missing").Return(File{}, []byte(nil), ErrFileNotFound)

	req := httptest.NewRequest(http.MethodGet, "/files/missing", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentHandler_UploadAssetWithFile_Success(t *testing.T) {
	files := new(mockFileRepository)
	assetSvc := new(mockAssetService)
	r := setupContentRouter(t, files, assetSvc)

	payload := []byte("model bytes")
	files.On("SaveFile", mock.Anything, mock.Anything, payload).
		Return(File{Hash: "abc123", Size: int64(len(payload))}, nil)
	assetSvc.On("UploadAsset", mock.Anything, "alice", mock.MatchedBy(func(a assets.Asset) bool {
		return a.FileHash == "abc123" && a.FileSize == int64(len(payload))
	})).Return(assets.Asset{ID: 1, Owner: "alice", FileHash: "abc123"}, nil)

	body := `{"name":"mesh","file_hash":"abc123","file_type":"model/gltf","price":100,"data":"` +
		base64.StdEncoding.EncodeToString(payload) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/assets/with-file", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal", "alice")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assetSvc.AssertExpectations(t)
}

// A retry after a half-finished combined upload finds the blob already
// stored and proceeds to registration.
func TestContentHandler_UploadAssetWithFile_ToleratesExistingBlob(t *testing.T) {
	files := new(mockFileRepository)
	assetSvc := new(mockAssetService)
	r := setupContentRouter(t, files, assetSvc)

	payload := []byte("model bytes")
	files.On("SaveFile", mock.Anything, mock.Anything, payload).Return(File{}, ErrFileExists)
	assetSvc.On("UploadAsset", mock.Anything, "alice", mock.Anything).
		Return(assets.Asset{ID: 2, Owner: "alice"}, nil)

	body := `{"name":"mesh","file_hash":"abc123","data":"` + base64.StdEncoding.EncodeToString(payload) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/assets/with-file", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal", "alice")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assetSvc.AssertExpectations(t)
}
