// internal/server/handlers/compare.go

package handlers

import (
	"net/http"
	"strconv"

	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
)

// CompareHandler puts two candidates side by side
type CompareHandler struct {
	source election.Source
}

// NewCompareHandler creates a new compare handler
func NewCompareHandler(source election.Source) *CompareHandler {
	return &CompareHandler{
		source: source,
	}
}

// Compare handles GET /compare?cargo=&ano=&a=&b=
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	office, ok := filter.ParseOffice(query.Get(filter.KeyOffice))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid office", nil)
		return
	}

	year := filter.DefaultYear
	if yearStr := query.Get(filter.KeyYear); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil || !filter.Year(y).Valid() {
			respondWithError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = filter.Year(y)
	}

	a, errA := strconv.Atoi(query.Get("a"))
	b, errB := strconv.Atoi(query.Get("b"))
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		respondWithError(w, http.StatusBadRequest, "Both candidates a and b are required", nil)
		return
	}

	cmp, err := election.Compare(r.Context(), h.source, year, office, a, b)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "Failed to compare candidates", err)
		return
	}

	respondWithJSON(w, http.StatusOK, cmp)
}
