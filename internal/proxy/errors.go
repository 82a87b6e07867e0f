package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nextlevelbuilder/fnhost/internal/apierr"
)

func missingHostError() *apierr.Error {
	return apierr.New(apierr.KindMissingHost, "missing or non-ASCII Host header")
}

func functionNotRunningError(prefix string) *apierr.Error {
	return apierr.New(apierr.KindFunctionNotRunning, fmt.Sprintf("function %q is not running", prefix))
}

func upstreamError(err error) *apierr.Error {
	return apierr.Wrap(apierr.KindIO, err)
}

func writeError(w http.ResponseWriter, err *apierr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Kind.StatusCode())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
