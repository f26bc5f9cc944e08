package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "devmarket/pkg/errors"
)

func newTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSuccessEnvelope(t *testing.T) {
	c, rec := newTestContext()

	require.NoError(t, Success(c, map[string]string{"hello": "world"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestErrorMapsAppErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.Forbidden("no", nil), http.StatusForbidden, "FORBIDDEN"},
		{apperrors.NotFound("Room", nil), http.StatusNotFound, "NOT_FOUND"},
		{apperrors.RoomClosed("closed"), http.StatusConflict, "ROOM_CLOSED"},
		{apperrors.InvalidState("bad deal state"), http.StatusConflict, "INVALID_STATE"},
		{apperrors.InvalidTransition("bad transition"), http.StatusConflict, "INVALID_TRANSITION"},
		{apperrors.AlreadyMediated("taken"), http.StatusConflict, "ALREADY_MEDIATED"},
		{apperrors.TooManyRequests("slow down"), http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
	}

	for _, tc := range cases {
		c, rec := newTestContext()
		require.NoError(t, Error(c, tc.err))

		assert.Equal(t, tc.status, rec.Code, tc.code)
		resp := decode(t, rec)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, tc.code, resp.Error.Code)
	}
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	c, rec := newTestContext()

	require.NoError(t, Error(c, assert.AnError))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestSuccessPaginatedMath(t *testing.T) {
	c, rec := newTestContext()

	require.NoError(t, SuccessPaginated(c, []int{1, 2, 3}, 7, 3, 3))

	var resp struct {
		Data PaginatedResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Page)
	assert.Equal(t, 3, resp.Data.PageSize)
	assert.Equal(t, 3, resp.Data.TotalPages)
}
