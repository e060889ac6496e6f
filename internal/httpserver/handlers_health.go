package httpserver

import (
	"net/http"

	"github.com/addispay/wallet-server/pkg/responders"
)

func (h handlers) health(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
