// Package contacts serves the relational contacts over HTTP: the read side, the
// audit and the live edits of structures and liaisons.
package contacts

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	ctxpkg "github.com/MoonWalka/app-booking-2-sub017/pkg/context"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

// Reader is implemented by query.Facade.
type Reader interface {
	GetStructuresWithPersonnes(ctx context.Context, organizationID string, filters models.StructureFilters) ([]models.StructureWithPersonnes, error)
	GetPersonnesLibres(ctx context.Context, organizationID string, filters models.PersonneFilters) ([]*models.Personne, error)
	GetPersonneWithStructures(ctx context.Context, organizationID, personneID string) (*models.PersonneWithStructures, error)
	Statistics(ctx context.Context, organizationID string) (*models.Statistics, error)
	InvalidateStatistics(ctx context.Context, organizationID string) error
}

// Auditor is implemented by audit.Auditor.
type Auditor interface {
	Run(ctx context.Context, organizationID string) (*models.AuditReport, error)
}

// Handler handles contact API endpoints
type Handler struct {
	reader   Reader
	auditor  Auditor
	resolver StructureResolver
	liaisons LiaisonManager
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewHandler creates a new contacts handler
func NewHandler(reader Reader, auditor Auditor, logger ectologger.Logger) *Handler {
	return &Handler{
		reader:   reader,
		auditor:  auditor,
		validate: validator.New(),
		logger:   logger,
	}
}

// Register registers the contact routes on an /organizations/:organizationId group
func (h *Handler) Register(g *echo.Group) {
	g.GET("/structures", h.ListStructures)
	g.GET("/personnes/libres", h.ListPersonnesLibres)
	g.GET("/personnes/:personneId", h.GetPersonne)
	g.GET("/statistics", h.GetStatistics)
	g.DELETE("/statistics", h.InvalidateStatistics)
	g.GET("/audit", h.GetAudit)
	h.registerWrites(g)
}

type structureQuery struct {
	Search string   `validate:"max=200"`
	Name   string   `validate:"max=200"`
	Client string   `validate:"omitempty,oneof=true false"`
	Type   string   `validate:"max=100"`
	Tags   []string `validate:"max=20,dive,required,max=100"`
}

type personneQuery struct {
	Search string   `validate:"max=200"`
	Tags   []string `validate:"max=20,dive,required,max=100"`
}

// organization reads the tenant from the path and records it on the request context.
func organization(c echo.Context) (context.Context, string, error) {
	organizationID := c.Param("organizationId")
	if organizationID == "" {
		return nil, "", httperror.NewHTTPError(http.StatusBadRequest, "organizationId is required")
	}
	ctx := ctxpkg.SetOrganizationID(c.Request().Context(), organizationID)
	c.SetRequest(c.Request().WithContext(ctx))
	return ctx, organizationID, nil
}

func (h *Handler) check(v any) error {
	if err := h.validate.Struct(v); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// ListStructures returns structures joined with their active personnes
func (h *Handler) ListStructures(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}

	var q structureQuery
	if err := echo.QueryParamsBinder(c).
		String("search", &q.Search).
		String("name", &q.Name).
		String("client", &q.Client).
		String("type", &q.Type).
		Strings("tag", &q.Tags).
		BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if err := h.check(q); err != nil {
		return err
	}

	filters := models.StructureFilters{SearchTerm: q.Search, Name: q.Name, Type: q.Type, Tags: q.Tags}
	if q.Client != "" {
		client, _ := strconv.ParseBool(q.Client)
		filters.IsClient = &client
	}

	structures, err := h.reader.GetStructuresWithPersonnes(ctx, organizationID, filters)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, structures)
}

// ListPersonnesLibres returns personnes without an active liaison
func (h *Handler) ListPersonnesLibres(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}

	var q personneQuery
	if err := echo.QueryParamsBinder(c).
		String("search", &q.Search).
		Strings("tag", &q.Tags).
		BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if err := h.check(q); err != nil {
		return err
	}

	personnes, err := h.reader.GetPersonnesLibres(ctx, organizationID, models.PersonneFilters{SearchTerm: q.Search, Tags: q.Tags})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, personnes)
}

// GetPersonne returns one personne with its active structures
func (h *Handler) GetPersonne(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}

	personne, err := h.reader.GetPersonneWithStructures(ctx, organizationID, c.Param("personneId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, personne)
}

func (h *Handler) GetStatistics(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}

	stats, err := h.reader.Statistics(ctx, organizationID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) InvalidateStatistics(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}

	if err := h.reader.InvalidateStatistics(ctx, organizationID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GetAudit runs a read-only consistency audit
func (h *Handler) GetAudit(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}

	report, err := h.auditor.Run(ctx, organizationID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
