package campaign

import (
	"encoding/json"
	"fmt"

	"github.com/fleetedge/inspection-agent/internal/candecode"
	"github.com/fleetedge/inspection-agent/internal/fwerrors"
	"github.com/fleetedge/inspection-agent/internal/signal"
)

type wireManifest struct {
	Channels []struct {
		Channel  uint8 `json:"channel"`
		Messages []struct {
			FrameID   uint32           `json:"frameId"`
			SizeBytes uint8            `json:"sizeBytes"`
			Valid     bool             `json:"valid"`
			Policy    string           `json:"policy"`
			Signals   []wireSignalFmt  `json:"signals"`
		} `json:"messages"`
	} `json:"channels"`
	SignalsToCollect []uint32 `json:"signalsToCollect"`
}

type wireSignalFmt struct {
	ID          uint32  `json:"id"`
	StartBit    uint16  `json:"startBit"`
	SizeBits    uint16  `json:"sizeBits"`
	BigEndian   bool    `json:"bigEndian"`
	Signed      bool    `json:"signed"`
	Factor      float64 `json:"factor"`
	Offset      float64 `json:"offset"`
	Type        string  `json:"type"`
}

// ParseManifest parses a decoder manifest document into an immutable
// Dictionary (spec §6). Malformed manifests are rejected with
// ErrDictionaryMalformed; the caller keeps the previous dictionary.
func ParseManifest(data []byte) (*candecode.Dictionary, error) {
	var wm wireManifest
	if err := json.Unmarshal(data, &wm); err != nil {
		return nil, fmt.Errorf("%w: %v", fwerrors.ErrDictionaryMalformed, err)
	}

	methods := make(map[signal.ChannelID]map[uint32]candecode.DecodeMethod)
	for _, ch := range wm.Channels {
		byFrame := make(map[uint32]candecode.DecodeMethod, len(ch.Messages))
		for _, msg := range ch.Messages {
			policy, err := parsePolicy(msg.Policy)
			if err != nil {
				return nil, err
			}
			sigs := make([]candecode.CANSignalFormat, 0, len(msg.Signals))
			for _, s := range msg.Signals {
				t, err := parseSignalType(s.Type)
				if err != nil {
					return nil, err
				}
				sigs = append(sigs, candecode.CANSignalFormat{
					ID:          signal.ID(s.ID),
					StartBit:    s.StartBit,
					SizeBits:    s.SizeBits,
					IsBigEndian: s.BigEndian,
					IsSigned:    s.Signed,
					Factor:      s.Factor,
					Offset:      s.Offset,
					Type:        t,
				})
			}
			byFrame[msg.FrameID] = candecode.DecodeMethod{
				Format: candecode.CANMessageFormat{
					MessageID: msg.FrameID,
					SizeBytes: msg.SizeBytes,
					Signals:   sigs,
					IsValid:   msg.Valid,
				},
				Policy: policy,
			}
		}
		methods[signal.ChannelID(ch.Channel)] = byFrame
	}

	toCollect := make(map[signal.ID]struct{}, len(wm.SignalsToCollect))
	for _, id := range wm.SignalsToCollect {
		toCollect[signal.ID(id)] = struct{}{}
	}

	return candecode.NewDictionary(methods, toCollect), nil
}

func parsePolicy(s string) (candecode.CollectPolicy, error) {
	switch s {
	case "RAW":
		return candecode.PolicyRaw, nil
	case "DECODE":
		return candecode.PolicyDecode, nil
	case "RAW_AND_DECODE":
		return candecode.PolicyRawAndDecode, nil
	default:
		return 0, fmt.Errorf("%w: unknown collect policy %q", fwerrors.ErrDictionaryMalformed, s)
	}
}

func parseSignalType(s string) (signal.Type, error) {
	switch s {
	case "DOUBLE", "":
		return signal.TypeDouble, nil
	case "INT8":
		return signal.TypeInt8, nil
	case "INT16":
		return signal.TypeInt16, nil
	case "INT32":
		return signal.TypeInt32, nil
	case "INT64":
		return signal.TypeInt64, nil
	case "UINT8":
		return signal.TypeUint8, nil
	case "UINT16":
		return signal.TypeUint16, nil
	case "UINT32":
		return signal.TypeUint32, nil
	case "UINT64":
		return signal.TypeUint64, nil
	case "BOOL":
		return signal.TypeBool, nil
	case "STRING":
		return signal.TypeString, nil
	default:
		return 0, fmt.Errorf("%w: unknown signal type %q", fwerrors.ErrDictionaryMalformed, s)
	}
}
