package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountbook/internal/config"
	"accountbook/internal/services"
)

func TestCreateBackend(t *testing.T) {
	tests := []struct {
		name       string
		config     Config
		wantAtomic bool
	}{
		{
			name:   "memory",
			config: Config{Type: MemoryBackend},
		},
		{
			name:       "sqlite",
			config:     Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "db", "test.db")},
			wantAtomic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewFactory(nil).CreateBackend(context.Background(), tt.config)
			require.NoError(t, err)
			require.NotNil(t, res.Backend)
			assert.Nil(t, res.Publisher)
			t.Cleanup(func() { assert.NoError(t, res.Cleanup()) })

			_, atomic := res.Backend.(services.AtomicMaterializer)
			assert.Equal(t, tt.wantAtomic, atomic)

			rules, err := res.Backend.ListActive(context.Background())
			require.NoError(t, err)
			assert.Empty(t, rules)
		})
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.Error(t, err)

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, AMQPURL: "amqp://localhost/"})
	assert.Error(t, err)
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "./data/test.db",
		AMQPURL:      "amqp://localhost/",
		AMQPExchange: "ex",
		AMQPQueue:    "q",
	})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "./data/test.db", cfg.SQLiteDBPath)
	assert.Equal(t, "q", cfg.AMQPQueue)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
	_, err = FromAppConfig(nil)
	assert.Error(t, err)

	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}
