package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/cutbench/cutbench-agent/internal/timeline"
)

// GenerateEDL renders the timeline as a CMX 3600 edit decision list. Each
// clip becomes one video event on reel AX; a non-cut transition into a clip
// turns its event into a dissolve with the transition length in frames, and
// a clip speed other than 1x adds an M2 motion memo after the event.
func GenerateEDL(in Input) string {
	fps := int(math.Round(in.Timeline.Settings.FPS))
	if fps <= 0 {
		fps = 30
	}

	frameRate := in.Timeline.Settings.FPS
	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	title := in.ProjectName
	if title == "" {
		title = in.ProjectID
	}

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	media := in.mediaByID()

	recordOffset := 0.0
	for i, clip := range in.Timeline.Clips {
		srcIn := secondsToTimecode(clip.InPoint, fps)
		srcOut := secondsToTimecode(clip.OutPoint, fps)
		recIn := secondsToTimecode(recordOffset, fps)
		length := clip.OutPoint - clip.InPoint
		recOut := secondsToTimecode(recordOffset+length, fps)

		edit := "C    "
		if i > 0 {
			if t := dissolveInto(in.Timeline, in.Timeline.Clips[i-1].ID, clip.ID); t != nil {
				frames := int(math.Round(t.Duration * float64(fps)))
				edit = fmt.Sprintf("D %03d", frames)
			}
		}

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s %s    %s %s %s %s", i+1, "AX", "V", edit, srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.Label),
			fmt.Sprintf("* MEDIA PATH:  %s", clipMediaPath(clip, media)),
		)

		if clip.Speed != 1.0 {
			lines = append(lines,
				fmt.Sprintf("M2   %-8s %05.1f                 %s", "AX", float64(fps)*clip.Speed, srcIn),
			)
		}

		recordOffset += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// dissolveInto finds a non-cut transition joining two adjacent clips.
func dissolveInto(d timeline.Data, fromID, toID string) *timeline.Transition {
	for i := range d.Transitions {
		t := &d.Transitions[i]
		if t.FromClipID == fromID && t.ToClipID == toID && t.Type != timeline.TransitionCut && t.Duration > 0 {
			return t
		}
	}
	return nil
}

func clipMediaPath(clip timeline.Clip, media map[string]SourceMedia) string {
	if sm, ok := media[clip.SourceVideoID]; ok && sm.Path != "" {
		return sm.Path
	}
	return clip.SourceFilename
}

func secondsToTimecode(seconds float64, fps int) string {
	totalFrames := int(math.Round(seconds * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}
