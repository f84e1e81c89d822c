package cdc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongobridge/mongosrv/pkg/cdc"
)

func baseConfig() cdc.Config {
	return cdc.Config{
		Endpoint: "objects.example.com",
		Bucket:   "cdc-staging",
		Path:     "cdc/{database}/{collection}/*.parquet",
		Format:   cdc.FormatParquet,
	}
}

func TestConfigDefaults(t *testing.T) {
	c := baseConfig().WithDefaults()
	assert.Equal(t, time.Second, c.PollInterval)
	assert.Equal(t, 4, c.MaxThreads)
	assert.Equal(t, 65536, c.MaxBlockSize)
	assert.Equal(t, cdc.AfterProcessingKeep, c.AfterProcessing)
}

func TestConfigOrderedModeClampsMaxThreads(t *testing.T) {
	c := baseConfig()
	c.MaxThreads = 16
	c.OrderedMode = true
	c = c.WithDefaults()
	assert.Equal(t, 1, c.MaxThreads)
}

func TestConfigValidateRejectsBadMaxThreads(t *testing.T) {
	c := baseConfig().WithDefaults()
	c.MaxThreads = 65
	require.Error(t, c.Validate())
}

func TestConfigValidateRejectsUnsupportedFormat(t *testing.T) {
	c := baseConfig().WithDefaults()
	c.Format = "XML"
	require.Error(t, c.Validate())
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	c := baseConfig().WithDefaults()
	require.NoError(t, c.Validate())
}
