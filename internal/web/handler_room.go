package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/service"
	"github.com/vbonduro/renobudget/internal/sheet"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 10 << 20
)

// costField accepts a cost sent either as a JSON number or a JSON string so
// that malformed values reach validation instead of failing the decode.
type costField string

func (c *costField) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = costField(s)
		return nil
	}
	*c = costField(b)
	return nil
}

type itemRequest struct {
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Cost        costField `json:"cost"`
	URL         string    `json:"url"`
	Note        string    `json:"note"`
}

type patchRequest struct {
	Type        *string    `json:"type"`
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Cost        *costField `json:"cost"`
	URL         *string    `json:"url"`
	Note        *string    `json:"note"`
}

func (p patchRequest) toPatch() sheet.ItemPatch {
	patch := sheet.ItemPatch{
		Type:        p.Type,
		Name:        p.Name,
		Description: p.Description,
		URL:         p.URL,
		Note:        p.Note,
	}
	if p.Cost != nil {
		c := string(*p.Cost)
		patch.Cost = &c
	}
	return patch
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "rooms": s.service.ListRooms()})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetRoom(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "room": detail})
}

// handleItemsByType lists the room's items, filtered by the "type" query
// parameter when present.
func (s *Server) handleItemsByType(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	var (
		items []domain.Item
		err   error
	)
	if itemType := r.URL.Query().Get("type"); itemType != "" {
		items, err = s.service.ItemsByType(r.Context(), room, itemType)
	} else {
		var detail *service.RoomDetail
		if detail, err = s.service.GetRoom(r.Context(), room); err == nil {
			items = detail.Items
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": items})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	var in sheet.ItemInput
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			s.writeErrors(w, http.StatusBadRequest, "failed to parse form")
			return
		}
		in.Fields = domain.ItemFields{
			Type:        r.FormValue("type"),
			Name:        r.FormValue("name"),
			Description: r.FormValue("description"),
			Cost:        r.FormValue("cost"),
			URL:         r.FormValue("url"),
			Note:        r.FormValue("note"),
		}
		img, err := s.formImage(r)
		if err != nil {
			s.writeErrors(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Image = img
	} else {
		var req itemRequest
		if err := decodeJSON(r, maxJSONBody, &req); err != nil {
			s.writeErrors(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		in.Fields = domain.ItemFields{
			Type:        req.Type,
			Name:        req.Name,
			Description: req.Description,
			Cost:        string(req.Cost),
			URL:         req.URL,
			Note:        req.Note,
		}
	}

	item, err := s.service.AddItem(r.Context(), room, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"success": true, "item": item})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	id := chi.URLParam(r, "id")

	var patch sheet.ItemPatch
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			s.writeErrors(w, http.StatusBadRequest, "failed to parse form")
			return
		}
		patch = sheet.ItemPatch{
			Type:        formField(r, "type"),
			Name:        formField(r, "name"),
			Description: formField(r, "description"),
			Cost:        formField(r, "cost"),
			URL:         formField(r, "url"),
			Note:        formField(r, "note"),
		}
		img, err := s.formImage(r)
		if err != nil {
			s.writeErrors(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Image = img
	} else {
		var req patchRequest
		if err := decodeJSON(r, maxJSONBody, &req); err != nil {
			s.writeErrors(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		patch = req.toPatch()
	}

	item, err := s.service.UpdateItem(r.Context(), room, id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "item": item})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteItem(r.Context(), chi.URLParam(r, "room"), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUpdateCosts(w http.ResponseWriter, r *http.Request) {
	var raw map[string]costField
	if err := decodeJSON(r, maxJSONBody, &raw); err != nil {
		s.writeErrors(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	costs := make(map[string]string, len(raw))
	for k, v := range raw {
		costs[k] = string(v)
	}

	updated, warnings, err := s.service.UpdateGeneralCosts(r.Context(), chi.URLParam(r, "room"), costs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := map[string]any{"success": true, "general_costs": updated}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.service.Totals(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "totals": totals})
}

// handleImport replaces the room's items with a JSON array or CSV document
// sent either as the raw body or as the multipart file field "file".
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = http.MaxBytesReader(w, r.Body, maxImportBody)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxImportBody); err != nil {
			s.writeErrors(w, http.StatusBadRequest, "failed to parse form")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			s.writeErrors(w, http.StatusBadRequest, "import file required")
			return
		}
		defer closeWithLog(file, "import file", s.logger)
		body = file
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		s.writeErrors(w, http.StatusBadRequest, "failed to read import")
		return
	}

	items, err := s.service.ImportItems(r.Context(), chi.URLParam(r, "room"), string(raw))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": items})
}

func (s *Server) handleLoadSample(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.LoadSample(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": items})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	name, err := s.service.ExportWorkbook(r.Context(), chi.URLParam(r, "room"), &buf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("write workbook failed", "file", name, "error", err)
	}
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.service.Snapshots(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "snapshots": snaps})
}
