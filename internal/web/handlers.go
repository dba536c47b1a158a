package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/m2o/internal/catalog"
	"github.com/JonMunkholm/m2o/internal/core"
	"github.com/JonMunkholm/m2o/internal/export"
	"github.com/JonMunkholm/m2o/internal/logging"
)

// Content types of the export downloads.
const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// handleHealth reports liveness and the number of live sessions.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.service.SessionCount(),
	})
}

// handleListCurrencies returns the currencies that have a price column.
func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"currencies": s.service.Currencies()})
}

// handleTemplate returns the export template columns.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"columns": s.service.Template()})
}

// handleExportStatus returns the export limiter state.
func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ExportStatus())
}

// ============================================================================
// Sessions
// ============================================================================

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.NewSession()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("session created", "session_id", sess.ID)

	w.Header().Set("Location", "/api/sessions/"+sess.ID.String())
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()).Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.service.DeleteSession(sess.ID.String()); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

func (s *Server) handleSelectCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess := sessionFrom(r.Context())
	if err := sess.SelectCurrency(req.Currency); err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "session_id", sess.ID).Info("currency selected", "currency", req.Currency)

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// ============================================================================
// Matrix and Selection
// ============================================================================

func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	fams, err := sessionFrom(r.Context()).Families()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"families": fams})
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := sessionFrom(r.Context()).Matrix(chi.URLParam(r, "family"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type toggleRequest struct {
	Key catalog.Key `json:"key"`
	On  bool        `json:"on"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess := sessionFrom(r.Context())
	if err := sess.Toggle(req.Key, req.On); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

type columnRequest struct {
	Family          string `json:"family"`
	UpholsteryType  string `json:"upholstery_type"`
	UpholsteryColor string `json:"upholstery_color"`
	On              bool   `json:"on"`
}

func (s *Server) handleToggleColumn(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	n, err := sessionFrom(r.Context()).ToggleColumn(req.Family, req.UpholsteryType, req.UpholsteryColor, req.On)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": n})
}

type basesRequest struct {
	Key   catalog.Key `json:"key"`
	Bases []string    `json:"bases"`
}

func (s *Server) handleSetBases(w http.ResponseWriter, r *http.Request) {
	var req basesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess := sessionFrom(r.Context())
	if err := sess.SetChosenBases(req.Key, req.Bases); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

type familyBaseRequest struct {
	Family string `json:"family"`
	Base   string `json:"base"`
	On     bool   `json:"on"`
}

func (s *Server) handleApplyBase(w http.ResponseWriter, r *http.Request) {
	var req familyBaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	n, err := sessionFrom(r.Context()).ApplyBase(req.Family, req.Base, req.On)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": n})
}

// ============================================================================
// Review
// ============================================================================

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	res, err := sessionFrom(r.Context()).Review()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRemoveItem removes one resolved item, named by the item_no query
// parameter. The base parameter, when present, names its base color.
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	itemNo := q.Get("item_no")
	if itemNo == "" {
		s.respondError(w, r, fmt.Errorf("%w: item_no is required", core.ErrInvalidRequest))
		return
	}

	sess := sessionFrom(r.Context())
	if err := sess.RemoveResolvedItem(itemNo, q.Get("base"), q.Has("base")); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := sess.Review()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ============================================================================
// Export
// ============================================================================

// exportPreview is the JSON rendering of an export table.
type exportPreview struct {
	Currency string           `json:"currency"`
	FileName string           `json:"file_name"`
	Columns  []string         `json:"columns"`
	Rows     [][]string       `json:"rows"`
	Warnings []export.Warning `json:"warnings,omitempty"`
}

func (s *Server) handleExportPreview(w http.ResponseWriter, r *http.Request) {
	t, err := sessionFrom(r.Context()).GenerateExport(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = row.Cells
	}
	writeJSON(w, http.StatusOK, exportPreview{
		Currency: t.Currency,
		FileName: export.FileName(t.Currency, "xlsx"),
		Columns:  t.Columns,
		Rows:     rows,
		Warnings: t.Warnings,
	})
}

func (s *Server) handleDownloadXLSX(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, "xlsx", contentTypeXLSX, export.WriteXLSX)
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, "csv", contentTypeCSV, export.WriteCSV)
}

// download generates the export and streams it as an attachment. The file
// is rendered into a buffer first so a write error can still be reported
// with a proper status.
func (s *Server) download(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, *export.Table) error) {
	sess := sessionFrom(r.Context())
	t, err := sess.GenerateExport(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if t.Empty() {
		s.respondError(w, r, core.ErrNothingToExport)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, t); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "session_id", sess.ID).Info("export generated",
		"currency", t.Currency,
		"format", ext,
		"rows", len(t.Rows),
		"warnings", len(t.Warnings),
		"bytes", buf.Len(),
	)

	name := export.FileName(t.Currency, ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("X-Export-Warnings", strconv.Itoa(len(t.Warnings)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
