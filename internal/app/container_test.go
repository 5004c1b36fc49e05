package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/config"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildScrapeNeedsNoCredentials(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_SHEET_ID", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	c, err := BuildScrape(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, c.Controller)
	require.NotNil(t, c.Metrics)
	c.Close()
}

func TestBuildFailsFatallyWithoutCredentials(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	_, err = Build(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.True(t, errors.IsFatal(err))
}

func TestBuildFailsFatallyOnBadSheetsCredentials(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(creds, []byte(`not json`), 0o600))

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("GOOGLE_SHEET_ID", "sheet")
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS_FILE", creds)
	cfg, err := config.Load()
	require.NoError(t, err)

	_, err = Build(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.True(t, errors.IsFatal(err))
}

func TestRetryPolicyFromSettings(t *testing.T) {
	policy := RetryPolicy(config.RetrySettings{MaxAttempts: 3, InitialInterval: time.Second, MaxInterval: 10 * time.Minute})
	require.Equal(t, 3, policy.MaxAttempts)
	require.Equal(t, time.Second, policy.InitialInterval)
	require.Equal(t, 10*time.Minute, policy.MaxInterval)
	require.Equal(t, 2.0, policy.Multiplier)
}
