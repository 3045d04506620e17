// Package cli wires the fwedge-agent binary: config/manifest/campaign
// loading, component construction, and the cobra command surface.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/fleetedge/inspection-agent/internal/campaign"
	"github.com/fleetedge/inspection-agent/internal/candecode"
	"github.com/fleetedge/inspection-agent/internal/canconsumer"
	"github.com/fleetedge/inspection-agent/internal/customfn"
	"github.com/fleetedge/inspection-agent/internal/fwconfig"
	"github.com/fleetedge/inspection-agent/internal/inspection"
	"github.com/fleetedge/inspection-agent/internal/logging"
	"github.com/fleetedge/inspection-agent/internal/queue"
	"github.com/fleetedge/inspection-agent/internal/signal"
	"github.com/fleetedge/inspection-agent/internal/uplink"
)

// Sources collects the file paths a run needs beyond the agent config
// itself: the decoder manifest, the signal name catalog, and zero or
// more campaign documents.
type Sources struct {
	ConfigPath    string
	ManifestPath  string
	CatalogPath   string
	CampaignPaths []string
	ReplayLogPath string
}

// Agent is every constructed, wired component of one run, ready for
// its caller to start the consumer/engine/publisher goroutines and
// wait for shutdown.
type Agent struct {
	Config    *fwconfig.AgentConfig
	Logger    zerolog.Logger
	Dict      *candecode.Handle
	Registry  *customfn.Registry
	Engine    *inspection.Engine
	Consumers []*canconsumer.Consumer
	Publisher *uplink.Publisher

	// FrameIntake routes a replay-log or future real bus reader's
	// output to the consumer registered for that frame's channel.
	FrameIntake map[signal.ChannelID]chan<- canconsumer.Frame
}

// Bootstrap loads every input document named by src and wires a
// complete, not-yet-started Agent. Config and decoder/campaign
// document loading are themselves out of scope (spec §1); Bootstrap's
// job is to turn already-read bytes into running components, but it
// also performs the file reads for the CLI's convenience.
func Bootstrap(src Sources) (*Agent, error) {
	cfg := fwconfig.DefaultAgentConfig()
	if src.ConfigPath != "" {
		data, err := os.ReadFile(src.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("cli: read config: %w", err)
		}
		cfg, err = fwconfig.Load(data)
		if err != nil {
			return nil, fmt.Errorf("cli: load config: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cli: default config invalid: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		SampleEvery: cfg.Log.SampleEvery,
	})

	catalog, err := loadCatalog(src.CatalogPath)
	if err != nil {
		return nil, err
	}

	dict, err := loadDictionary(src.ManifestPath)
	if err != nil {
		return nil, err
	}
	dictHandle := &candecode.Handle{}
	dictHandle.Store(dict)

	registry := customfn.NewRegistry()

	overflowPolicy := queue.DropOldest
	if cfg.Queues.OverflowPolicy == "drop_newest" {
		overflowPolicy = queue.DropNewest
	}

	uplinkQueue := queue.New[uplink.CollectionPayload](cfg.Queues.UplinkDepth, overflowPolicy)
	distributor := queue.NewDistributor[uplink.CollectionPayload]()
	distributor.Register(uplinkQueue)

	engine := inspection.NewEngine(cfg.Inspection, cfg.Queues.ConsumerToInspectionDepth, overflowPolicy, registry, distributor, logger)
	engine.SetSignalNames(catalog.NameByID())

	for _, path := range src.CampaignPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cli: read campaign %s: %w", path, err)
		}
		c, err := campaign.ParseCampaign(data, catalog.Resolve)
		if err != nil {
			return nil, fmt.Errorf("cli: parse campaign %s: %w", path, err)
		}
		if err := engine.RegisterCampaign(c); err != nil {
			return nil, fmt.Errorf("cli: register campaign %s: %w", path, err)
		}
	}

	consumers := make([]*canconsumer.Consumer, 0, len(cfg.Channels))
	intake := make(map[signal.ChannelID]chan<- canconsumer.Frame, len(cfg.Channels))
	sink := engine.Sink()
	for _, ch := range cfg.Channels {
		channelID := signalChannelID(ch.ID)
		frames := make(chan canconsumer.Frame, cfg.Queues.ConsumerToInspectionDepth)
		consumer := canconsumer.NewConsumer(channelID, dictHandle, frames, sink, logger)
		consumers = append(consumers, consumer)
		intake[channelID] = frames
	}

	publisher := uplink.NewPublisher(uplinkQueue, notConfiguredSend, retryConfigFrom(cfg.Uplink), logger)

	return &Agent{
		Config:      cfg,
		Logger:      logger,
		Dict:        dictHandle,
		Registry:    registry,
		Engine:      engine,
		Consumers:   consumers,
		Publisher:   publisher,
		FrameIntake: intake,
	}, nil
}

func loadDictionary(path string) (*candecode.Dictionary, error) {
	if path == "" {
		return candecode.NewDictionary(nil, nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read manifest: %w", err)
	}
	dict, err := campaign.ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("cli: parse manifest: %w", err)
	}
	return dict, nil
}

func loadCatalog(path string) (*campaign.Catalog, error) {
	if path == "" {
		return campaign.ParseCatalog([]byte(`{}`))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read catalog: %w", err)
	}
	cat, err := campaign.ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("cli: parse catalog: %w", err)
	}
	return cat, nil
}
