package archive

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pbcore/pbcore"
	"github.com/jacentio/pbcore/picklist"
)

type assetItem struct {
	ID    string `dynamodbav:"id"`
	Title string `dynamodbav:"title"`
}

type formatIDItem struct {
	ID         string `dynamodbav:"id"`
	Identifier string `dynamodbav:"identifier"`
	Source     string `dynamodbav:"source"`
}

type essenceTrackItem struct {
	ID               string `dynamodbav:"id"`
	Type             string `dynamodbav:"type"`
	Identifier       string `dynamodbav:"identifier"`
	IdentifierSource string `dynamodbav:"identifier_source"`
	Standard         string `dynamodbav:"standard"`
	Encoding         string `dynamodbav:"encoding"`
	DataRate         string `dynamodbav:"data_rate"`
	TimeStart        string `dynamodbav:"time_start"`
	Duration         string `dynamodbav:"duration"`
	BitDepth         string `dynamodbav:"bit_depth"`
	SamplingRate     string `dynamodbav:"sampling_rate"`
	FrameSize        string `dynamodbav:"frame_size"`
	AspectRatio      string `dynamodbav:"aspect_ratio"`
	FrameRate        string `dynamodbav:"frame_rate"`
	Language         string `dynamodbav:"language"`
	Annotation       string `dynamodbav:"annotation"`
}

type dateAvailableItem struct {
	ID    string `dynamodbav:"id"`
	Start string `dynamodbav:"start"`
	End   string `dynamodbav:"end"`
}

type annotationItem struct {
	ID   string `dynamodbav:"id"`
	Text string `dynamodbav:"text"`
}

// instantiationItem is the stored shape of an Instantiation. Picklist
// references are stored as "vocabulary#id".
type instantiationItem struct {
	ID                   string              `dynamodbav:"id"`
	AssetID              string              `dynamodbav:"asset_id"`
	DateCreated          string              `dynamodbav:"date_created"`
	DateIssued           string              `dynamodbav:"date_issued"`
	FormatMedium         string              `dynamodbav:"format_medium"`
	Format               string              `dynamodbav:"format"`
	FormatLocation       string              `dynamodbav:"format_location"`
	MediaType            string              `dynamodbav:"media_type"`
	Generation           string              `dynamodbav:"generation"`
	FileSize             string              `dynamodbav:"file_size"`
	TimeStart            string              `dynamodbav:"time_start"`
	Duration             string              `dynamodbav:"duration"`
	DataRate             string              `dynamodbav:"data_rate"`
	Color                string              `dynamodbav:"color"`
	Tracks               string              `dynamodbav:"tracks"`
	ChannelConfiguration string              `dynamodbav:"channel_configuration"`
	Language             string              `dynamodbav:"language"`
	AlternativeModes     string              `dynamodbav:"alternative_modes"`
	FormatIDs            []formatIDItem      `dynamodbav:"format_ids"`
	EssenceTracks        []essenceTrackItem  `dynamodbav:"essence_tracks"`
	DatesAvailable       []dateAvailableItem `dynamodbav:"dates_available"`
	Annotations          []annotationItem    `dynamodbav:"annotations"`
}

type entryItem struct {
	ID         string `dynamodbav:"id"`
	Vocabulary string `dynamodbav:"vocabulary"`
	Name       string `dynamodbav:"name"`
}

func newInstantiationItem(inst *pbcore.Instantiation) instantiationItem {
	item := instantiationItem{
		ID:                   inst.ID,
		AssetID:              inst.AssetID,
		DateCreated:          inst.DateCreated,
		DateIssued:           inst.DateIssued,
		FormatMedium:         string(inst.Format.Medium),
		Format:               refString(inst.Format.Ref),
		FormatLocation:       inst.FormatLocation,
		MediaType:            refString(inst.MediaType),
		Generation:           refString(inst.Generation),
		FileSize:             inst.FileSize,
		TimeStart:            inst.TimeStart,
		Duration:             inst.Duration,
		DataRate:             inst.DataRate,
		Color:                refString(inst.Color),
		Tracks:               inst.Tracks,
		ChannelConfiguration: inst.ChannelConfiguration,
		Language:             inst.Language,
		AlternativeModes:     inst.AlternativeModes,
	}
	for _, f := range inst.FormatIDs {
		item.FormatIDs = append(item.FormatIDs, formatIDItem{ID: f.ID, Identifier: f.Identifier, Source: f.Source})
	}
	for _, e := range inst.EssenceTracks {
		item.EssenceTracks = append(item.EssenceTracks, essenceTrackItem{
			ID:               e.ID,
			Type:             refString(e.Type),
			Identifier:       e.Identifier,
			IdentifierSource: e.IdentifierSource,
			Standard:         e.Standard,
			Encoding:         e.Encoding,
			DataRate:         e.DataRate,
			TimeStart:        e.TimeStart,
			Duration:         e.Duration,
			BitDepth:         e.BitDepth,
			SamplingRate:     e.SamplingRate,
			FrameSize:        e.FrameSize,
			AspectRatio:      e.AspectRatio,
			FrameRate:        e.FrameRate,
			Language:         e.Language,
			Annotation:       e.Annotation,
		})
	}
	for _, d := range inst.DatesAvailable {
		item.DatesAvailable = append(item.DatesAvailable, dateAvailableItem{ID: d.ID, Start: d.Start, End: d.End})
	}
	for _, a := range inst.Annotations {
		item.Annotations = append(item.Annotations, annotationItem{ID: a.ID, Text: a.Text})
	}
	return item
}

func (item instantiationItem) instantiation(version int64) (*pbcore.Instantiation, error) {
	var refErr error
	ref := func(s string) picklist.Ref {
		r, err := picklist.ParseRef(s)
		if err != nil && refErr == nil {
			refErr = err
		}
		return r
	}

	inst := &pbcore.Instantiation{
		ID:                   item.ID,
		AssetID:              item.AssetID,
		Version:              version,
		DateCreated:          item.DateCreated,
		DateIssued:           item.DateIssued,
		FormatLocation:       item.FormatLocation,
		MediaType:            ref(item.MediaType),
		Generation:           ref(item.Generation),
		FileSize:             item.FileSize,
		TimeStart:            item.TimeStart,
		Duration:             item.Duration,
		DataRate:             item.DataRate,
		Color:                ref(item.Color),
		Tracks:               item.Tracks,
		ChannelConfiguration: item.ChannelConfiguration,
		Language:             item.Language,
		AlternativeModes:     item.AlternativeModes,
	}
	switch pbcore.Medium(item.FormatMedium) {
	case pbcore.MediumPhysical:
		inst.Format = pbcore.PhysicalFormat(ref(item.Format))
	case pbcore.MediumDigital:
		inst.Format = pbcore.DigitalFormat(ref(item.Format))
	}

	for _, f := range item.FormatIDs {
		inst.FormatIDs = append(inst.FormatIDs, &pbcore.FormatID{ID: f.ID, Identifier: f.Identifier, Source: f.Source})
	}
	for _, e := range item.EssenceTracks {
		inst.EssenceTracks = append(inst.EssenceTracks, &pbcore.EssenceTrack{
			ID:               e.ID,
			Type:             ref(e.Type),
			Identifier:       e.Identifier,
			IdentifierSource: e.IdentifierSource,
			Standard:         e.Standard,
			Encoding:         e.Encoding,
			DataRate:         e.DataRate,
			TimeStart:        e.TimeStart,
			Duration:         e.Duration,
			BitDepth:         e.BitDepth,
			SamplingRate:     e.SamplingRate,
			FrameSize:        e.FrameSize,
			AspectRatio:      e.AspectRatio,
			FrameRate:        e.FrameRate,
			Language:         e.Language,
			Annotation:       e.Annotation,
		})
	}
	for _, d := range item.DatesAvailable {
		inst.DatesAvailable = append(inst.DatesAvailable, &pbcore.DateAvailable{ID: d.ID, Start: d.Start, End: d.End})
	}
	for _, a := range item.Annotations {
		inst.Annotations = append(inst.Annotations, &pbcore.Annotation{ID: a.ID, Text: a.Text})
	}

	if refErr != nil {
		return nil, fmt.Errorf("instantiation %s: %w", item.ID, refErr)
	}
	return inst, nil
}

func refString(r picklist.Ref) string {
	if r.IsZero() {
		return ""
	}
	return r.String()
}

func marshal(v any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return item, nil
}

func unmarshal(raw map[string]types.AttributeValue, v any) error {
	if err := attributevalue.UnmarshalMap(raw, v); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}
