package visit

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/domain/chartexport"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/blobstore"
)

// Export formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

var formatContentTypes = map[string]string{
	FormatPDF:  blobstore.ContentTypePDF,
	FormatXLSX: blobstore.ContentTypeXLSX,
}

// ExportHandler renders the printable documents of a visit.
type ExportHandler struct {
	svc     *Service
	builder *chartexport.Builder
	blobs   blobstore.BlobStore
	logger  zerolog.Logger
}

func NewExportHandler(svc *Service, builder *chartexport.Builder, blobs blobstore.BlobStore, logger zerolog.Logger) *ExportHandler {
	return &ExportHandler{svc: svc, builder: builder, blobs: blobs, logger: logger}
}

func (h *ExportHandler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleDentist, auth.RoleAssistant))
	g.GET("/visits/:id/export.pdf", h.DownloadPDF)
	g.GET("/visits/:id/export.xlsx", h.DownloadSpreadsheet)
	g.POST("/visits/:id/exports", h.StoreExport)
}

func (h *ExportHandler) render(c echo.Context, format string) ([]byte, string, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, "", err
	}
	ctx := c.Request().Context()
	doc, err := h.svc.Document(ctx, id)
	if err != nil {
		return nil, "", httpError(err, http.StatusInternalServerError)
	}

	var out []byte
	switch format {
	case FormatPDF:
		out, err = h.builder.Build(ctx, doc)
	case FormatXLSX:
		out, err = chartexport.Spreadsheet(doc)
	default:
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "format must be pdf or xlsx")
	}
	if err != nil {
		h.logger.Error().Err(err).Str("visit_id", id.String()).Str("format", format).Msg("export failed")
		if errors.Is(err, chartexport.ErrTemplatesUnavailable) {
			return nil, "", echo.NewHTTPError(http.StatusBadGateway,
				"No se pudieron cargar las plantillas del odontograma. Intente nuevamente más tarde.")
		}
		return nil, "", echo.NewHTTPError(http.StatusInternalServerError, "export failed")
	}
	return out, doc.FileName(format), nil
}

func (h *ExportHandler) attachment(c echo.Context, format string) error {
	out, name, err := h.render(c, format)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Blob(http.StatusOK, formatContentTypes[format], out)
}

func (h *ExportHandler) DownloadPDF(c echo.Context) error { return h.attachment(c, FormatPDF) }

func (h *ExportHandler) DownloadSpreadsheet(c echo.Context) error {
	return h.attachment(c, FormatXLSX)
}

// StoreExport renders a document and keeps it for later download through
// /exports/:id.
func (h *ExportHandler) StoreExport(c echo.Context) error {
	var body struct {
		Format string `json:"format"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.Format == "" {
		body.Format = FormatPDF
	}
	if _, ok := formatContentTypes[body.Format]; !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "format must be pdf or xlsx")
	}

	out, name, err := h.render(c, body.Format)
	if err != nil {
		return err
	}
	createdBy := auth.UserIDFromContext(c.Request().Context())
	meta, err := h.blobs.Upload(c.Request().Context(), blobstore.BlobMetadata{
		FileName:    name,
		ContentType: formatContentTypes[body.Format],
		VisitID:     c.Param("id"),
		CreatedBy:   createdBy,
	}, bytes.NewReader(out))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, meta)
}
