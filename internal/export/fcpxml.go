package export

import (
	"encoding/xml"
	"fmt"
	"math"
)

// FCPXML 1.9 skeleton: a resources block with one format and one asset per
// source video, and a single spine of asset-clips. Enough structure for a
// round trip into Final Cut or DaVinci Resolve; effects and audio lanes are
// the renderer's problem.

type fcpxmlDoc struct {
	XMLName   xml.Name        `xml:"fcpxml"`
	Version   string          `xml:"version,attr"`
	Resources fcpxmlResources `xml:"resources"`
	Library   fcpxmlLibrary   `xml:"library"`
}

type fcpxmlResources struct {
	Formats []fcpxmlFormat `xml:"format"`
	Assets  []fcpxmlAsset  `xml:"asset"`
}

type fcpxmlFormat struct {
	ID            string `xml:"id,attr"`
	Name          string `xml:"name,attr,omitempty"`
	FrameDuration string `xml:"frameDuration,attr"`
	Width         int    `xml:"width,attr"`
	Height        int    `xml:"height,attr"`
}

type fcpxmlAsset struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Src      string `xml:"src,attr"`
	Duration string `xml:"duration,attr,omitempty"`
	HasVideo int    `xml:"hasVideo,attr"`
	HasAudio int    `xml:"hasAudio,attr"`
}

type fcpxmlLibrary struct {
	Event fcpxmlEvent `xml:"event"`
}

type fcpxmlEvent struct {
	Name    string        `xml:"name,attr"`
	Project fcpxmlProject `xml:"project"`
}

type fcpxmlProject struct {
	Name     string         `xml:"name,attr"`
	Sequence fcpxmlSequence `xml:"sequence"`
}

type fcpxmlSequence struct {
	Format   string      `xml:"format,attr"`
	Duration string      `xml:"duration,attr"`
	Spine    fcpxmlSpine `xml:"spine"`
}

type fcpxmlSpine struct {
	Clips []fcpxmlAssetClip `xml:"asset-clip"`
}

type fcpxmlAssetClip struct {
	Ref      string `xml:"ref,attr"`
	Name     string `xml:"name,attr"`
	Offset   string `xml:"offset,attr"`
	Start    string `xml:"start,attr"`
	Duration string `xml:"duration,attr"`
}

// GenerateFCPXML builds the XML data export.
func GenerateFCPXML(in Input) ([]byte, error) {
	fps := int(math.Round(in.Timeline.Settings.FPS))
	if fps <= 0 {
		fps = 30
	}

	doc := fcpxmlDoc{
		Version: "1.9",
		Resources: fcpxmlResources{
			Formats: []fcpxmlFormat{{
				ID:            "r1",
				Name:          fmt.Sprintf("FFVideoFormat%dp%d", in.Timeline.Settings.Height, fps),
				FrameDuration: fmt.Sprintf("1/%ds", fps),
				Width:         in.Timeline.Settings.Width,
				Height:        in.Timeline.Settings.Height,
			}},
		},
	}

	assetRefs := make(map[string]string, len(in.Media))
	for i, sm := range in.Media {
		ref := fmt.Sprintf("r%d", i+2)
		assetRefs[sm.ID] = ref

		hasAudio := 0
		if sm.HasAudio {
			hasAudio = 1
		}
		doc.Resources.Assets = append(doc.Resources.Assets, fcpxmlAsset{
			ID:       ref,
			Name:     sm.Filename,
			Src:      "file://" + sm.Path,
			Duration: rationalTime(sm.Duration, fps),
			HasVideo: 1,
			HasAudio: hasAudio,
		})
	}

	spine := fcpxmlSpine{Clips: []fcpxmlAssetClip{}}
	offset := 0.0
	for _, clip := range in.Timeline.Clips {
		ref, ok := assetRefs[clip.SourceVideoID]
		if !ok {
			return nil, fmt.Errorf("clip %q references unknown source video %q", clip.Label, clip.SourceVideoID)
		}
		length := clip.OutPoint - clip.InPoint
		spine.Clips = append(spine.Clips, fcpxmlAssetClip{
			Ref:      ref,
			Name:     clip.Label,
			Offset:   rationalTime(offset, fps),
			Start:    rationalTime(clip.InPoint, fps),
			Duration: rationalTime(length, fps),
		})
		offset += length
	}

	eventName := in.ProjectName
	if eventName == "" {
		eventName = in.ProjectID
	}
	doc.Library = fcpxmlLibrary{
		Event: fcpxmlEvent{
			Name: eventName,
			Project: fcpxmlProject{
				Name: eventName,
				Sequence: fcpxmlSequence{
					Format:   "r1",
					Duration: rationalTime(in.Timeline.Duration, fps),
					Spine:    spine,
				},
			},
		},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal fcpxml: %w", err)
	}

	out := make([]byte, 0, len(body)+64)
	out = append(out, []byte(xml.Header)...)
	out = append(out, []byte("<!DOCTYPE fcpxml>\n")...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// rationalTime renders seconds as an FCPXML rational time on the frame grid.
func rationalTime(seconds float64, fps int) string {
	frames := int(math.Round(seconds * float64(fps)))
	return fmt.Sprintf("%d/%ds", frames, fps)
}
