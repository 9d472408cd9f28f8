package kafka

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kafka.yml")
	require.NoError(t, os.WriteFile(path, []byte(`schema_version: v1
brokers: [localhost:9092]
topics: [formatx.requests]
start_from: oldest
`), 0o644))
	t.Setenv("FORMATX_KAFKA__GROUP_ID", "nexus-writers")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Driver:    "sarama",
		Brokers:   []string{"localhost:9092"},
		Topics:    []string{"formatx.requests"},
		GroupID:   "nexus-writers",
		StartFrom: "oldest",
		CommitInt: 5 * time.Second,
	}, cfg)
}

func TestLoadConfig_Rejects(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"schema":     "schema_version: v2\nbrokers: [b]\ntopics: [t]\n",
		"no-brokers": "topics: [t]\n",
		"start-from": "brokers: [b]\ntopics: [t]\nstart_from: yesterday\n",
	} {
		path := filepath.Join(dir, name+".yml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := LoadConfig(path)
		assert.Error(t, err, name)
	}
}
