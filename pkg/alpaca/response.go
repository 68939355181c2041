package alpaca

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Global transaction counter
var txCounter atomic.Uint32

type baseResponse struct {
	ClientTransactionID uint32 `json:"ClientTransactionID"`
	ServerTransactionID uint32 `json:"ServerTransactionID"`
	ErrorNumber         int    `json:"ErrorNumber"`
	ErrorMessage        string `json:"ErrorMessage"`
	Value               any    `json:"Value,omitempty"`
}

// parseParams returns the request parameters with lower case names: from the
// form encoded body for PUT, from the URL otherwise. Alpaca parameter names
// are case insensitive.
func parseParams(r *http.Request) (url.Values, error) {
	raw := r.URL.Query()

	if r.Method == http.MethodPut {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		// Reset the body so it can be read again later.
		r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		if raw, err = url.ParseQuery(string(bodyBytes)); err != nil {
			return nil, err
		}
	}

	params := make(url.Values, len(raw))
	for k, v := range raw {
		k = strings.ToLower(k)
		params[k] = append(params[k], v...)
	}
	return params, nil
}

// getClientTxID obtains the client transaction ID. It is optional, but must be
// a non-negative integer when given.
func getClientTxID(params url.Values) (uint32, error) {
	value := params.Get("clienttransactionid")
	if value == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, errors.New("ClientTransactionID must be a non-negative integer")
	}
	return uint32(id), nil
}

// handleAPI adapts a device method to the Alpaca response format. Errors are
// reported in the response body with status 200; only malformed requests get
// an HTTP error.
func handleAPI(fn func(r *http.Request, params url.Values) (any, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := parseParams(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		txID, err := getClientTxID(params)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		value, err := fn(r, params)

		var badReq *badRequestError
		if errors.As(err, &badReq) {
			http.Error(w, badReq.Error(), http.StatusBadRequest)
			return
		}

		response := baseResponse{
			ServerTransactionID: txCounter.Add(1),
			ClientTransactionID: txID,
		}
		if err != nil {
			response.ErrorNumber, response.ErrorMessage = errorCode(err)
			log.Debugf("%s %s: %v", r.Method, r.URL.Path, err)
		} else {
			response.Value = value
		}
		writeResponse(w, response)
	})
}

// handleMgm adapts a management method, which takes no parameters.
func handleMgm(fn func(r *http.Request) (any, error)) http.Handler {
	return handleAPI(func(r *http.Request, _ url.Values) (any, error) {
		return fn(r)
	})
}

func writeResponse(w http.ResponseWriter, response baseResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Errorf("Error writing response: %v", err)
	}
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

// paramString returns a required parameter. A missing parameter is a
// malformed request.
func paramString(params url.Values, field string) (string, error) {
	values, ok := params[strings.ToLower(field)]
	if !ok || len(values) == 0 {
		return "", &badRequestError{msg: "missing parameter " + field}
	}
	return values[0], nil
}

func paramBool(params url.Values, field string) (bool, error) {
	value, err := paramString(params, field)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, &badRequestError{msg: "invalid boolean " + field + "=" + value}
	}
	return b, nil
}

func paramInt(params url.Values, field string) (int, error) {
	value, err := paramString(params, field)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &badRequestError{msg: "invalid integer " + field + "=" + value}
	}
	return n, nil
}
