package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	pin "github.com/legalpin/legalcert/pkg"
	log "github.com/sirupsen/logrus"
)

var httpCodeForError = map[string]int{
	string(pin.InvalidInput):      400,
	string(pin.BadRequest):        400,
	string(pin.NotFound):          404,
	string(pin.AlreadyExists):     409,
	string(pin.NoCoinAvailable):   409,
	string(pin.SigningIncomplete): 502,
	string(pin.TransportFailure):  502,
	string(pin.NotAvailable):      503,
	string(pin.UnknownError):      500,
}

func HttpStatusForError(code pin.ErrorCode) int {
	status, found := httpCodeForError[string(code)]
	if !found {
		status = http.StatusInternalServerError
	}
	return status
}

func sendResponse(w http.ResponseWriter, payload any) {
	// note: w.Header after this, so we can call sendError
	b, err := json.Marshal(payload)
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "marshal", fmt.Sprintf("in json.Marshal: %s", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.Write(b)
}

func sendBadRequest(w http.ResponseWriter, message string) {
	sendErrorResponse(w, http.StatusBadRequest, pin.BadRequest, message)
}

func sendError(w http.ResponseWriter, where string, err error) {
	var info *pin.ErrorInfo
	if errors.As(err, &info) {
		status := HttpStatusForError(info.Code)
		message := fmt.Sprintf("%s: %s", where, info.Message)
		sendErrorResponse(w, status, info.Code, message)
	} else {
		// node errors (RPC error objects) land here
		message := fmt.Sprintf("%s: %s", where, err.Error())
		sendErrorResponse(w, http.StatusInternalServerError, pin.UnknownError, message)
	}
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, code pin.ErrorCode, message string) {
	log.Warnf("[!] %s: %s", code, message)
	// would prefer to use json.Marshal, but this avoids the need
	// to handle encoding errors arising from json.Marshal itself!
	payload := fmt.Sprintf("{\"error\":{\"code\":%q,\"message\":%q}}", code, message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.WriteHeader(statusCode)
	w.Write([]byte(payload))
}
