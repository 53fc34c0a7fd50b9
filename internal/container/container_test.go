package container

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rpma/ppf-workflow/internal/application/service"
	"github.com/rpma/ppf-workflow/internal/application/workflow"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "ppf.db")
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Database.Path = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "database.path")

	cfg = DefaultConfig()
	cfg.Realtime.Path = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "realtime.path")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start is rejected")

	assert.NotNil(t, c.DB())
	assert.NotNil(t, c.Repositories())
	assert.NotNil(t, c.Dispatcher())
	assert.NotNil(t, c.WorkflowEngine())
	assert.NotNil(t, c.Services())
	assert.NotNil(t, c.Hub())
	assert.NotNil(t, c.Server())

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.True(t, health.Components["realtime"].Healthy)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx), "closed container cannot restart")

	assert.False(t, c.Health(ctx).Overall)
}

func TestContainer_RealtimeDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Realtime.Enabled = false

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	assert.Nil(t, c.Hub())
	assert.Equal(t, "disabled", c.Health(context.Background()).Components["realtime"].Message)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c.Server().Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContainer_WiresAuditTrail(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Close() })

	task, err := c.Services().Task.CreateTask(ctx, service.CreateTaskRequest{
		Title:        "Full front PPF",
		VehiclePlate: "ab-123-cd",
		PPFZones:     []string{"hood"},
	})
	require.NoError(t, err)
	assert.Equal(t, "AB-123-CD", task.VehiclePlate)

	in, err := c.WorkflowEngine().StartIntervention(ctx, workflow.StartInterventionRequest{
		TaskID:   task.ID,
		FilmType: "premium",
		ActorID:  "tech-1",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		trail, err := c.Services().Audit.GetTrail(ctx, in.ID)
		return err == nil && len(trail) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestProvideDatabase_RequiresInputs(t *testing.T) {
	_, err := ProvideDatabase(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = ProvideDatabase(&DatabaseConfig{Path: filepath.Join(t.TempDir(), "x.db")}, nil)
	assert.Error(t, err)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("task_id", "t-1", 42, "ignored", "error", errors.New("boom"), "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "task_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
