package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianaguero/chatgate/internal/ailink"
	"github.com/adrianaguero/chatgate/internal/ailink/driver"
	"github.com/adrianaguero/chatgate/internal/config"
	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/adrianaguero/chatgate/internal/core/quota"
	"github.com/adrianaguero/chatgate/internal/core/store"
	"github.com/adrianaguero/chatgate/internal/output"
)

func testConfig(driverName string) *config.Config {
	return &config.Config{
		Quota:  config.QuotaConfig{Driver: driverName, Limit: 2, Window: time.Minute},
		AILink: ailink.Config{Provider: ailink.ProviderGemini},
		Chat:   config.ChatConfig{MaxDuration: 5 * time.Second},
	}
}

func TestNewChatRuntimeMemoryDriver(t *testing.T) {
	ctx := context.Background()
	rt, err := newChatRuntime(ctx, testConfig(config.DriverMemory), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	require.NotNil(t, rt.store)
	assert.NoError(t, rt.checkQuotaStore(ctx))
	assert.Equal(t, ailink.ProviderGemini, rt.handler.Provider)
	assert.Equal(t, 5*time.Second, rt.handler.MaxDuration)

	for i := 0; i < 2; i++ {
		assert.True(t, rt.limiter.Check(ctx, "10.0.0.1").Allowed)
	}
	denied := rt.limiter.Check(ctx, "10.0.0.1")
	assert.False(t, denied.Allowed)
	assert.Equal(t, 2, denied.Limit)
}

func TestNewChatRuntimeUnconfiguredStoreFailsOpen(t *testing.T) {
	ctx := context.Background()
	rt, err := newChatRuntime(ctx, testConfig(config.DriverRedis), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.Nil(t, rt.store)
	assert.ErrorIs(t, rt.checkQuotaStore(ctx), errQuotaUnconfigured)
	for i := 0; i < 10; i++ {
		assert.True(t, rt.limiter.Check(ctx, "10.0.0.1").Allowed)
	}
}

func TestNewChatRuntimeBrokenStoreReportsError(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverRedis)
	cfg.Quota.URL = "ftp://not-redis"

	rt, err := newChatRuntime(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	require.NotNil(t, rt.store)
	assert.IsType(t, quota.Unavailable{}, rt.store)
	assert.Error(t, rt.checkQuotaStore(ctx))
	assert.True(t, rt.limiter.Check(ctx, "10.0.0.1").Allowed)
}

func TestCheckCredential(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverMemory)

	rt, err := newChatRuntime(ctx, cfg, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, rt.checkCredential(ctx), driver.ErrMissingAPIKey)

	cfg.AILink.APIKey = "test-key"
	rt, err = newChatRuntime(ctx, cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, rt.checkCredential(ctx))
}

func TestCheckIdentity(t *testing.T) {
	assert.Error(t, checkIdentity(nil))
	assert.Error(t, checkIdentity(&appidentity.Identity{BinaryName: "chatgate"}))
	assert.NoError(t, checkIdentity(&appidentity.Identity{
		BinaryName: "chatgate",
		EnvPrefix:  "CHATGATE_",
		ConfigName: "chatgate",
	}))
}

func TestServeOverridesOnlyChangedFlags(t *testing.T) {
	c := &cobra.Command{}
	c.Flags().StringVar(&serverHost, "host", "localhost", "")
	c.Flags().IntVarP(&serverPort, "port", "p", 8080, "")

	assert.Empty(t, serveOverrides(c))

	require.NoError(t, c.Flags().Set("port", "9191"))
	assert.Equal(t, map[string]any{"server": map[string]any{"port": 9191}}, serveOverrides(c))

	require.NoError(t, c.Flags().Set("host", "0.0.0.0"))
	assert.Equal(t, map[string]any{"server": map[string]any{"host": "0.0.0.0", "port": 9191}}, serveOverrides(c))
}

func TestConversationAlternatesRoles(t *testing.T) {
	messages := conversation([]string{"hola", "buenas", "¿qué haces?"})
	require.Len(t, messages, 3)
	assert.Equal(t, core.RoleUser, messages[0].Role)
	assert.Equal(t, core.RoleAssistant, messages[1].Role)
	assert.Equal(t, core.RoleUser, messages[2].Role)
	assert.Equal(t, "¿qué haces?", messages[2].Content)

	assert.Empty(t, conversation(nil))
}

func TestProviderAddress(t *testing.T) {
	tests := []struct {
		in   string
		host string
		port string
	}{
		{"https://generativelanguage.googleapis.com/v1beta", "generativelanguage.googleapis.com", "443"},
		{"http://localhost:11434/v1", "localhost", "11434"},
		{"http://proxy.internal", "proxy.internal", "80"},
	}
	for _, tt := range tests {
		host, port, err := providerAddress(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.host, host)
		assert.Equal(t, tt.port, port)
	}

	_, _, err := providerAddress("not a url")
	assert.Error(t, err)
}

func TestEntryRowDerivesRemaining(t *testing.T) {
	window := core.QuotaWindow{Limit: 5, Duration: time.Minute}
	oldest := time.UnixMilli(1_700_000_000_000)
	row := entryRow(window, store.QuotaEntry{
		Identifier: "10.0.0.1",
		Count:      5,
		Oldest:     oldest,
		Newest:     oldest.Add(10 * time.Second),
	})

	assert.Equal(t, "10.0.0.1", row.Identifier)
	assert.Equal(t, 5, row.Used)
	assert.Equal(t, 0, row.Remaining)
	assert.Equal(t, oldest.Add(time.Minute).UnixMilli(), row.ResetAt)
}

func TestWriteRenderedToOutDir(t *testing.T) {
	c := &cobra.Command{}
	addRenderFlags(c)
	var stdout bytes.Buffer
	c.SetOut(&stdout)

	dir := t.TempDir()
	require.NoError(t, c.Flags().Set("out-dir", dir))
	require.NoError(t, writeRendered(c, output.FormatJSON, "quota.list", "[]\n"))
	assert.Empty(t, stdout.String())
	assert.FileExists(t, dir+"/quota.list.json")

	require.NoError(t, c.Flags().Set("out", dir+"/x.txt"))
	assert.Error(t, writeRendered(c, output.FormatJSON, "quota.list", "[]"))
}
