package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/holidays"
)

type holidayItem struct {
	Date string `json:"date"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Holidays annotates the calendar view. Holidays never block bookings.
func (h *Handler) Holidays(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("year"))
	year, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be a four-digit number")
		return
	}

	list, err := holidays.ForYear(year)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]holidayItem, 0, len(list))
	for _, hd := range list {
		items = append(items, holidayItem{
			Date: hd.Date.Format("2006-01-02"),
			Name: hd.Name,
			Kind: string(hd.Kind),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": items})
}
