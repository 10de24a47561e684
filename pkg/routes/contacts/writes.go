package contacts

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

const sourceManual = "manual"

// StructureResolver is implemented by identity.Resolver.
type StructureResolver interface {
	FindOrCreateStructure(ctx context.Context, organizationID string, candidate models.StructureCandidate) (*models.Structure, error)
}

// LiaisonManager is implemented by liaison.Manager.
type LiaisonManager interface {
	CreateOrReactivateLiaison(ctx context.Context, organizationID, structureID, personneID string, attrs models.LiaisonAttrs) (*models.Liaison, error)
	DeactivateLiaison(ctx context.Context, organizationID, liaisonID string) (*models.Liaison, error)
	SetPrioritaire(ctx context.Context, organizationID, structureID, personneID string) (*models.Liaison, error)
	RecomputeIsPersonneLibre(ctx context.Context, organizationID, personneID string) (bool, error)
}

type liaisonRequest struct {
	StructureID string     `json:"structureId" validate:"required,max=200"`
	PersonneID  string     `json:"personneId" validate:"required,max=200"`
	Fonction    *string    `json:"fonction,omitempty" validate:"omitempty,max=200"`
	Prioritaire *bool      `json:"prioritaire,omitempty"`
	Interesse   *bool      `json:"interesse,omitempty"`
	Notes       *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
	DateDebut   *time.Time `json:"dateDebut,omitempty"`
}

type pairRequest struct {
	StructureID string `json:"structureId" validate:"required,max=200"`
	PersonneID  string `json:"personneId" validate:"required,max=200"`
}

type libreResponse struct {
	PersonneID      string `json:"personneId"`
	IsPersonneLibre bool   `json:"isPersonneLibre"`
}

// WithWriters enables the write routes.
func (h *Handler) WithWriters(resolver StructureResolver, liaisons LiaisonManager) *Handler {
	h.resolver = resolver
	h.liaisons = liaisons
	return h
}

func (h *Handler) registerWrites(g *echo.Group) {
	if h.resolver != nil {
		g.POST("/structures", h.CreateStructure)
	}
	if h.liaisons != nil {
		g.POST("/liaisons", h.CreateLiaison)
		g.PUT("/liaisons/prioritaire", h.SetPrioritaire)
		g.DELETE("/liaisons/:liaisonId", h.DeactivateLiaison)
		g.POST("/personnes/:personneId/recompute", h.RecomputePersonneLibre)
	}
}

func (h *Handler) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return h.check(req)
}

// written drops the cached statistics after a successful write.
func (h *Handler) written(ctx context.Context, organizationID string) {
	if err := h.reader.InvalidateStatistics(ctx, organizationID); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate cached statistics")
	}
}

// CreateStructure returns the structure matching the candidate or creates it
func (h *Handler) CreateStructure(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "contacts_handler.CreateStructure")
	defer span.End()

	var candidate models.StructureCandidate
	if err := h.bind(c, &candidate); err != nil {
		return err
	}
	if candidate.Source == "" {
		candidate.Source = sourceManual
	}

	structure, err := h.resolver.FindOrCreateStructure(ctx, organizationID, candidate)
	if err != nil {
		return err
	}
	h.written(ctx, organizationID)
	return c.JSON(http.StatusOK, structure)
}

// CreateLiaison links a structure and a personne, reactivating a former liaison of the pair
func (h *Handler) CreateLiaison(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "contacts_handler.CreateLiaison")
	defer span.End()

	var req liaisonRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	l, err := h.liaisons.CreateOrReactivateLiaison(ctx, organizationID, req.StructureID, req.PersonneID, models.LiaisonAttrs{
		Fonction:    req.Fonction,
		Prioritaire: req.Prioritaire,
		Interesse:   req.Interesse,
		Notes:       req.Notes,
		DateDebut:   req.DateDebut,
	})
	if err != nil {
		return err
	}
	h.written(ctx, organizationID)
	return c.JSON(http.StatusOK, l)
}

// DeactivateLiaison soft-deletes a liaison
func (h *Handler) DeactivateLiaison(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "contacts_handler.DeactivateLiaison")
	defer span.End()

	l, err := h.liaisons.DeactivateLiaison(ctx, organizationID, c.Param("liaisonId"))
	if err != nil {
		return err
	}
	h.written(ctx, organizationID)
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) SetPrioritaire(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "contacts_handler.SetPrioritaire")
	defer span.End()

	var req pairRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	l, err := h.liaisons.SetPrioritaire(ctx, organizationID, req.StructureID, req.PersonneID)
	if err != nil {
		return err
	}
	h.written(ctx, organizationID)
	return c.JSON(http.StatusOK, l)
}

// RecomputePersonneLibre rebuilds the isPersonneLibre flag from the personne's liaisons
func (h *Handler) RecomputePersonneLibre(c echo.Context) error {
	ctx, organizationID, err := organization(c)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartSpan(ctx, "contacts_handler.RecomputePersonneLibre")
	defer span.End()

	personneID := c.Param("personneId")
	libre, err := h.liaisons.RecomputeIsPersonneLibre(ctx, organizationID, personneID)
	if err != nil {
		return err
	}
	h.written(ctx, organizationID)
	return c.JSON(http.StatusOK, libreResponse{PersonneID: personneID, IsPersonneLibre: libre})
}
