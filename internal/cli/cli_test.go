package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MoonWalka/app-booking-2-sub017/config"
	"github.com/MoonWalka/app-booking-2-sub017/internal/app"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store/memory"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/logging"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

const legacyExport = `
organizationId: org
records:
  - id: prog-a
    structureRaisonSociale: Festival Test
    email: lea@festival.fr
  - id: prog-b
    structureRaisonSociale: Festival Test
    email: TOM@festival.fr
`

type harness struct {
	t     *testing.T
	out   bytes.Buffer
	fault memory.FaultFunc
	apps  []*app.App
}

func newHarness(t *testing.T) *harness {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("STARTUP_MAX_ATTEMPTS", "1")
	return &harness{t: t}
}

func (h *harness) connect(ctx context.Context, cfg *config.Config, logger ectologger.Logger, needs app.Needs) (*app.App, error) {
	a, err := app.New(ctx, cfg, logger, needs)
	if err != nil {
		return nil, err
	}
	for _, p := range []*models.Personne{
		{ID: "p1", Prenom: "Léa", Nom: "Martin", Email: "lea@festival.fr", IsPersonneLibre: true},
		{ID: "p2", Prenom: "Tom", Nom: "Durand", Email: "tom@festival.fr", IsPersonneLibre: true},
	} {
		require.NoError(h.t, a.Repos.Personnes.Insert(ctx, "org", p))
	}
	if h.fault != nil {
		a.Store.(*memory.Store).SetFault(h.fault)
	}
	h.apps = append(h.apps, a)
	return a, nil
}

func (h *harness) execute(args ...string) error {
	cmd := newRootCmd(&rootOptions{connect: h.connect, logger: logging.Discard()})
	cmd.SetOut(&h.out)
	cmd.SetErr(&h.out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func writeExport(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, os.WriteFile(path, []byte(legacyExport), 0o600))
	return path
}

func TestRun_PrintsPhasesInOrder(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute("run", "org", "--legacy-file", writeExport(t)))

	out := h.out.String()
	last := -1
	for _, phase := range []string{"== ANALYSIS ==", "== CORRECTION ==", "== CREATION ==", "== SUMMARY =="} {
		idx := strings.Index(out, phase)
		require.Greater(t, idx, last, phase)
		last = idx
	}
	assert.NotContains(t, out, "would write")

	ds, err := h.apps[0].Repos.LoadDataset(context.Background(), "org")
	require.NoError(t, err)
	assert.Len(t, ds.Structures, 1)
	assert.Len(t, ds.Liaisons, 2)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute("run", "org", "--dry-run", "--legacy-file", writeExport(t)))

	assert.Contains(t, h.out.String(), "would write")
	ds, err := h.apps[0].Repos.LoadDataset(context.Background(), "org")
	require.NoError(t, err)
	assert.Empty(t, ds.Structures)
	assert.Empty(t, ds.Liaisons)
}

func TestRun_FailedBatchExitsWithError(t *testing.T) {
	h := newHarness(t)
	h.fault = func(int, []store.Op) error { return errors.New("write quota exceeded") }

	err := h.execute("run", "org", "--legacy-file", writeExport(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteRun)
}

func TestRun_RequiresOrganization(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.execute("run"))
}

func TestAudit_JSON(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.execute("audit", "org", "--json"))

	var report models.AuditReport
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &report))
	assert.Equal(t, "org", report.OrganizationID)
	assert.Equal(t, 2, report.Counts.TotalPersonnes)
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.execute("migrate"))
}
