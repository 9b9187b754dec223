package util

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

type Result struct {
	Ok     bool         `json:"ok"`
	Err    *string      `json:"error,omitempty"`
	Result *interface{} `json:"result,omitempty"`
}

func write(w http.ResponseWriter, statusCode int, result *Result) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, http.StatusText(http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func WriteOK(w http.ResponseWriter) {
	write(w, http.StatusOK, &Result{Ok: true})
}

func WriteJson(w http.ResponseWriter, res interface{}) {
	write(w, http.StatusOK, &Result{Ok: true, Result: &res})
}

func WriteError(w http.ResponseWriter, statusCode int, errorMessage string) {
	write(w, statusCode, &Result{Ok: false, Err: &errorMessage})
}

func WriteStatus(w http.ResponseWriter, statusCode int) {
	WriteError(w, statusCode, http.StatusText(statusCode))
}

func WriteUnauthorized(w http.ResponseWriter) {
	WriteStatus(w, http.StatusUnauthorized)
}

func WriteInternalServerError(w http.ResponseWriter) {
	WriteStatus(w, http.StatusInternalServerError)
}
