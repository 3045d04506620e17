package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `{"signals":[{"id":1,"name":"Vehicle.Speed"}]}`

const testCampaign = `{
	"campaignId": "camp-1",
	"collectionScheme": {
		"conditionBasedCollectionScheme": {
			"conditionLanguageVersion": 1,
			"expression": "Vehicle.Speed > 10.0",
			"triggerMode": "ALWAYS"
		}
	},
	"signalsToCollect": [{"name": "Vehicle.Speed"}]
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBootstrap_SucceedsWithDefaultConfigAndNoOptionalSources(t *testing.T) {
	agent, err := Bootstrap(Sources{})
	require.NoError(t, err)
	assert.NotNil(t, agent.Engine)
	assert.Len(t, agent.Consumers, 1)
	assert.Len(t, agent.FrameIntake, 1)
}

func TestBootstrap_LoadsCatalogAndRegistersCampaign(t *testing.T) {
	catalogPath := writeTemp(t, "catalog.json", testCatalog)
	campaignPath := writeTemp(t, "campaign.json", testCampaign)

	agent, err := Bootstrap(Sources{
		CatalogPath:   catalogPath,
		CampaignPaths: []string{campaignPath},
	})
	require.NoError(t, err)
	assert.NotNil(t, agent)
}

func TestBootstrap_RejectsMissingConfigFile(t *testing.T) {
	_, err := Bootstrap(Sources{ConfigPath: "/nonexistent/config.yaml"})
	assert.Error(t, err)
}

func TestBootstrap_RejectsMalformedManifest(t *testing.T) {
	manifestPath := writeTemp(t, "manifest.json", "{not json")
	_, err := Bootstrap(Sources{ManifestPath: manifestPath})
	assert.Error(t, err)
}

func TestBootstrap_RejectsMalformedCatalog(t *testing.T) {
	catalogPath := writeTemp(t, "catalog.json", "{not json")
	_, err := Bootstrap(Sources{CatalogPath: catalogPath})
	assert.Error(t, err)
}

func TestBootstrap_RejectsCampaignWithUnresolvableSignalName(t *testing.T) {
	campaignPath := writeTemp(t, "campaign.json", testCampaign)
	_, err := Bootstrap(Sources{CampaignPaths: []string{campaignPath}})
	assert.Error(t, err)
}

func TestBootstrap_RejectsMissingCampaignFile(t *testing.T) {
	_, err := Bootstrap(Sources{CampaignPaths: []string{"/nonexistent/campaign.json"}})
	assert.Error(t, err)
}
