package viewer

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	ebitext "github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

var (
	hudColorTitle     = color.RGBA{255, 255, 255, 255}
	hudColorRendering = color.RGBA{255, 210, 80, 255}
	hudColorComplete  = color.RGBA{120, 255, 120, 255}
	hudColorStatus    = color.RGBA{255, 120, 120, 255}
)

// HUD draws the progress and performance readout in the top-left corner.
type HUD struct {
	viewer *Viewer
	status string
}

// NewHUD creates a HUD bound to a viewer.
func NewHUD(v *Viewer) *HUD {
	return &HUD{viewer: v}
}

// SetStatus sets the transient error line. An empty string clears it.
func (h *HUD) SetStatus(msg string) {
	h.status = msg
}

// Draw renders the HUD onto the screen.
func (h *HUD) Draw(screen *ebiten.Image) {
	v := h.viewer
	done, total := v.scheduler.Counts()

	progressColor := hudColorRendering
	progressText := fmt.Sprintf("rendering %d/%d", done, total)
	if total > 0 && done == total {
		progressColor = hudColorComplete
		progressText = "complete"
	}

	drawTextSegments(screen, 8, 6, []textSegment{
		{fmt.Sprintf("%s  ", v.registry.Name(v.sceneID)), hudColorTitle},
		{progressText, progressColor},
	})

	stats := v.monitor.Snapshot()
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("workers: %d   mode: %s   deband: %v",
		v.workers, v.mode, v.deband), 8, 22)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("render: %dms   frame avg: %.2fms   blocks: %d",
		stats.LastRenderTime.Milliseconds(), stats.AvgFrameMs, stats.BlocksComposited), 8, 38)
	ebitenutil.DebugPrintAt(screen,
		"WASD/QE move  arrows look  1-9 scene  tab mode  b deband  -/= workers  r refresh", 8, 54)

	if h.status != "" {
		drawTextSegments(screen, 8, 72, []textSegment{{h.status, hudColorStatus}})
	}
}

type textSegment struct {
	text  string
	color color.Color
}

func drawTextSegments(screen *ebiten.Image, x, y int, segments []textSegment) {
	face := basicfont.Face7x13
	baseline := y + face.Ascent
	curX := x
	for _, seg := range segments {
		ebitext.Draw(screen, seg.text, face, curX, baseline, seg.color)
		curX += font.MeasureString(face, seg.text).Round()
	}
}
