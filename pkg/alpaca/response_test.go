package alpaca

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) baseResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var resp baseResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGetClientTxID(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		expected    uint32
		expectError bool
	}{
		{name: "Missing", value: "", expected: 0},
		{name: "Valid", value: "42", expected: 42},
		{name: "Negative", value: "-1", expectError: true},
		{name: "Not a number", value: "abc", expectError: true},
		{name: "Too large", value: "4294967296", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := url.Values{}
			if tt.value != "" {
				params.Set("clienttransactionid", tt.value)
			}
			id, err := getClientTxID(params)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestParseParamsCaseInsensitive(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/move", strings.NewReader("Position=10&ClientTransactionID=3"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	params, err := parseParams(req)
	require.NoError(t, err)
	assert.Equal(t, "10", params.Get("position"))
	assert.Equal(t, "3", params.Get("clienttransactionid"))

	get := httptest.NewRequest(http.MethodGet, "/position?CLIENTTRANSACTIONID=7", nil)
	params, err = parseParams(get)
	require.NoError(t, err)
	assert.Equal(t, "7", params.Get("clienttransactionid"))
}

func TestHandleAPI(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		fn        func(r *http.Request, params url.Values) (any, error)
		wantCode  int
		wantError int
		wantValue any
	}{
		{
			name:      "Value",
			target:    "/x?ClientTransactionID=5",
			fn:        func(*http.Request, url.Values) (any, error) { return 12.0, nil },
			wantCode:  http.StatusOK,
			wantValue: 12.0,
		},
		{
			name:      "ASCOM error",
			target:    "/x",
			fn:        func(*http.Request, url.Values) (any, error) { return nil, ErrNotConnected },
			wantCode:  http.StatusOK,
			wantError: codeNotConnected,
		},
		{
			name:      "Driver error",
			target:    "/x",
			fn:        func(*http.Request, url.Values) (any, error) { return nil, errors.New("boom") },
			wantCode:  http.StatusOK,
			wantError: codeDriverError,
		},
		{
			name:   "Missing parameter",
			target: "/x",
			fn: func(_ *http.Request, params url.Values) (any, error) {
				return paramInt(params, "Position")
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Bad transaction ID",
			target:   "/x?ClientTransactionID=-3",
			fn:       func(*http.Request, url.Values) (any, error) { return true, nil },
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleAPI(tt.fn).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decodeResponse(t, rec)
			assert.Equal(t, tt.wantError, resp.ErrorNumber)
			assert.Equal(t, tt.wantValue, resp.Value)
			assert.NotZero(t, resp.ServerTransactionID)
		})
	}
}

func TestServerTransactionIDIncreases(t *testing.T) {
	h := handleMgm(func(*http.Request) (any, error) { return nil, nil })

	var ids []uint32
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		ids = append(ids, decodeResponse(t, rec).ServerTransactionID)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])
}

func TestErrorIs(t *testing.T) {
	err := NewError(ErrInvalidValue, "position %d out of range", 5)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.NotErrorIs(t, err, ErrNotConnected)

	code, msg := errorCode(err)
	assert.Equal(t, codeInvalidValue, code)
	assert.Equal(t, "position 5 out of range", msg)
}
