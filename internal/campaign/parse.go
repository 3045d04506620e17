package campaign

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetedge/inspection-agent/internal/fwerrors"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

// wireCampaign mirrors the cloud collectionScheme JSON document shape
// from spec §6:
//
//	collectionScheme.conditionBasedCollectionScheme.{conditionLanguageVersion, expression, triggerMode}
//	signalsToCollect[].name
//	compression ∈ {SNAPPY, NONE}
type wireCampaign struct {
	CampaignID       string `json:"campaignId"`
	CollectionScheme struct {
		ConditionBased struct {
			ConditionLanguageVersion int    `json:"conditionLanguageVersion"`
			Expression               string `json:"expression"`
			TriggerMode              string `json:"triggerMode"`
		} `json:"conditionBasedCollectionScheme"`
	} `json:"collectionScheme"`
	SignalsToCollect []wireSignalSpec `json:"signalsToCollect"`
	Compression      string           `json:"compression"`
	MinIntervalMs    int64            `json:"minimumTriggerIntervalMs"`
	ExpiryTimeMs     int64            `json:"expiryTimeMs"`
}

type wireSignalSpec struct {
	Name               string `json:"name"`
	SampleWindowMs     int64  `json:"sampleWindowMs"`
	MinimumSampleCount int    `json:"minimumSampleCount"`
}

// NameResolver maps a cloud signal name to its internal signal.ID.
type NameResolver func(name string) (signal.ID, bool)

// ParseCampaign parses and validates a campaign document. Malformed
// documents (missing expression, unknown trigger mode, unresolvable
// signal name) are rejected with ErrCampaignMalformed; the caller is
// expected to keep the previous active campaign on error (spec §7).
func ParseCampaign(data []byte, resolve NameResolver) (*Campaign, error) {
	var wc wireCampaign
	if err := json.Unmarshal(data, &wc); err != nil {
		return nil, fmt.Errorf("%w: %v", fwerrors.ErrCampaignMalformed, err)
	}

	if wc.CampaignID == "" {
		return nil, fmt.Errorf("%w: missing campaignId", fwerrors.ErrCampaignMalformed)
	}
	expr := wc.CollectionScheme.ConditionBased.Expression
	if expr == "" {
		return nil, fmt.Errorf("%w: missing expression", fwerrors.ErrCampaignMalformed)
	}

	var mode TriggerMode
	switch wc.CollectionScheme.ConditionBased.TriggerMode {
	case string(TriggerRisingEdge):
		mode = TriggerRisingEdge
	case string(TriggerAlways):
		mode = TriggerAlways
	default:
		return nil, fmt.Errorf("%w: unknown triggerMode %q", fwerrors.ErrCampaignMalformed, wc.CollectionScheme.ConditionBased.TriggerMode)
	}

	compression := CompressionNone
	switch wc.Compression {
	case "", string(CompressionNone):
		compression = CompressionNone
	case string(CompressionSnappy):
		compression = CompressionSnappy
	default:
		return nil, fmt.Errorf("%w: unknown compression %q", fwerrors.ErrCampaignMalformed, wc.Compression)
	}

	specs := make([]SignalCollectSpec, 0, len(wc.SignalsToCollect))
	for _, s := range wc.SignalsToCollect {
		id, ok := resolve(s.Name)
		if !ok {
			return nil, fmt.Errorf("%w: unresolvable signal name %q", fwerrors.ErrCampaignMalformed, s.Name)
		}
		specs = append(specs, SignalCollectSpec{
			SignalID: id,
			Name:     s.Name,
			Window: WindowSpec{
				Span:        time.Duration(s.SampleWindowMs) * time.Millisecond,
				SampleCount: s.MinimumSampleCount,
			},
		})
	}

	c := &Campaign{
		ID:                       wc.CampaignID,
		ConditionLanguageVersion: wc.CollectionScheme.ConditionBased.ConditionLanguageVersion,
		Expression:               expr,
		TriggerMode:              mode,
		CollectSignals:           specs,
		MinInterval:              time.Duration(wc.MinIntervalMs) * time.Millisecond,
		Compression:              compression,
	}
	if wc.ExpiryTimeMs > 0 {
		c.Expiry = time.UnixMilli(wc.ExpiryTimeMs)
	}
	return c, nil
}
